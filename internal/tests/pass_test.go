package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/repository"
	"villagelink/internal/repository/memory"
	"villagelink/internal/service"
)

// ──────────────────────────────────────────────
// 5. TRAVEL PASSES
// ──────────────────────────────────────────────

type passFixture struct {
	passes  *service.PassService
	wallets *service.WalletService
	chain   *service.LedgerChain
	clock   *fixedClock
}

func newPassFixture(t *testing.T, starting int64) *passFixture {
	t.Helper()
	return newPassFixtureWithRepos(t, starting, memory.NewLedgerRepository(), memory.NewPassRepository())
}

func newPassFixtureWithRepos(t *testing.T, starting int64, ledgerRepo repository.LedgerRepository, passRepo repository.PassRepository) *passFixture {
	t.Helper()
	clock := newFixedClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	chain := service.NewLedgerChain(ledgerRepo, "VL-TEST", nil)
	wallets := service.NewWalletService(memory.NewWalletRepository(), chain, nil, nil, service.WalletConfig{StartingBalance: starting})
	passes := service.NewPassService(passRepo, chain, wallets, time.UTC)
	passes.SetClock(clock.Now)
	return &passFixture{passes: passes, wallets: wallets, chain: chain, clock: clock}
}

func (f *passFixture) purchase(t *testing.T, days int, price int64) *domain.Pass {
	t.Helper()
	p, err := f.passes.Purchase(context.Background(), service.PurchasePassRequest{
		UserID:       "student-1",
		Origin:       "Sasaram",
		Destination:  "Dehri-on-Sone",
		Type:         domain.PassTypeStudent,
		ValidityDays: days,
		Price:        price,
	})
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	return p
}

func TestPassPurchase_MintsAndCharges(t *testing.T) {
	t.Parallel()

	f := newPassFixture(t, 500)
	p := f.purchase(t, 30, 200)

	if p.NFTTokenID == "" {
		t.Error("pass has no token id")
	}
	if want := f.clock.Now().AddDate(0, 0, 30); !p.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", p.ExpiresAt, want)
	}
	if len(p.UsedDates) != 0 {
		t.Errorf("used dates = %v, want none", p.UsedDates)
	}

	w, err := f.wallets.GetWallet(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.Balance != 300 {
		t.Errorf("balance = %d, want 300", w.Balance)
	}

	blocks, err := f.chain.Blocks(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	// One TOKEN_SPEND for the price, then the NFT_MINT.
	if len(blocks) != 2 || blocks[1].Hash != p.NFTTokenID {
		t.Errorf("blocks = %d, mint hash mismatch", len(blocks))
	}

	listed, err := f.passes.ListByUser(context.Background(), "student-1")
	if err != nil || len(listed) != 1 || listed[0].ID != p.ID {
		t.Errorf("ListByUser = %v, %v", listed, err)
	}
}

func TestPassPurchase_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		req     service.PurchasePassRequest
		wantErr error
	}{
		{
			name:    "missing user",
			req:     service.PurchasePassRequest{Origin: "A", Destination: "B", Type: domain.PassTypeMonthly, ValidityDays: 30},
			wantErr: service.ErrInvalidPassengerID,
		},
		{
			name:    "missing destination",
			req:     service.PurchasePassRequest{UserID: "u", Origin: "A", Type: domain.PassTypeMonthly, ValidityDays: 30},
			wantErr: service.ErrInvalidStop,
		},
		{
			name:    "unknown type",
			req:     service.PurchasePassRequest{UserID: "u", Origin: "A", Destination: "B", Type: "WEEKLY", ValidityDays: 7},
			wantErr: service.ErrInvalidPassType,
		},
		{
			name:    "zero validity",
			req:     service.PurchasePassRequest{UserID: "u", Origin: "A", Destination: "B", Type: domain.PassTypeMonthly},
			wantErr: service.ErrInvalidValidity,
		},
		{
			name:    "price above balance",
			req:     service.PurchasePassRequest{UserID: "u", Origin: "A", Destination: "B", Type: domain.PassTypeMonthly, ValidityDays: 30, Price: 1000},
			wantErr: service.ErrInsufficientBalance,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newPassFixture(t, 100)
			if _, err := f.passes.Purchase(context.Background(), tc.req); !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
			if blocks, _ := f.chain.Blocks(context.Background(), 0, 10); len(blocks) != 0 {
				t.Errorf("blocks = %d, want 0", len(blocks))
			}
		})
	}
}

func TestPassVerify_OncePerDay(t *testing.T) {
	t.Parallel()

	f := newPassFixture(t, 0)
	p := f.purchase(t, 30, 0)
	ctx := context.Background()

	res, err := f.passes.Verify(ctx, p.ID)
	if err != nil || !res.Success {
		t.Fatalf("first verify: %+v %v", res, err)
	}

	res, err = f.passes.Verify(ctx, p.ID)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if res.Success || res.Reason != service.PassReasonUsedToday {
		t.Errorf("second verify = %+v, want used today", res)
	}

	f.clock.Set(f.clock.Now().Add(24 * time.Hour))
	res, err = f.passes.Verify(ctx, p.ID)
	if err != nil || !res.Success {
		t.Fatalf("next day verify: %+v %v", res, err)
	}

	stored, err := f.passes.GetPass(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPass: %v", err)
	}
	want := []string{"2026-05-04", "2026-05-05"}
	if len(stored.UsedDates) != len(want) || stored.UsedDates[0] != want[0] || stored.UsedDates[1] != want[1] {
		t.Errorf("used dates = %v, want %v", stored.UsedDates, want)
	}
}

func TestPassVerify_Expired(t *testing.T) {
	t.Parallel()

	f := newPassFixture(t, 0)
	p := f.purchase(t, 1, 0)

	f.clock.Set(f.clock.Now().Add(48 * time.Hour))
	res, err := f.passes.Verify(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Success || res.Reason != service.PassReasonExpired {
		t.Errorf("verify = %+v, want expired", res)
	}

	stored, _ := f.passes.GetPass(context.Background(), p.ID)
	if len(stored.UsedDates) != 0 {
		t.Errorf("expired pass recorded usage %v", stored.UsedDates)
	}
}

func TestPassVerify_ConcurrentSameDay(t *testing.T) {
	t.Parallel()

	f := newPassFixture(t, 0)
	p := f.purchase(t, 30, 0)

	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			res, err := f.passes.Verify(context.Background(), p.ID)
			results <- err == nil && res.Success
		}()
	}

	successes := 0
	for i := 0; i < 10; i++ {
		if <-results {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want 1", successes)
	}
}

func TestPassVerify_Unknown(t *testing.T) {
	t.Parallel()

	f := newPassFixture(t, 0)
	if _, err := f.passes.Verify(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := f.passes.Verify(context.Background(), ""); !errors.Is(err, service.ErrInvalidPassID) {
		t.Errorf("err = %v, want ErrInvalidPassID", err)
	}
}

func TestPassPurchase_RefundsWhenNotIssued(t *testing.T) {
	t.Parallel()

	mintFailure := func(t *testing.T) *passFixture {
		ledgerRepo := NewFailingLedgerRepository()
		// Block 0 is the charge, block 1 the mint.
		ledgerRepo.FailOnceAt(1, repository.ErrConflict)
		return newPassFixtureWithRepos(t, 500, ledgerRepo, memory.NewPassRepository())
	}
	storeFailure := func(t *testing.T) *passFixture {
		return newPassFixtureWithRepos(t, 500, memory.NewLedgerRepository(), NewFailingPassRepository(errors.New("db down")))
	}

	tests := []struct {
		name       string
		fixture    func(t *testing.T) *passFixture
		wantBlocks int
	}{
		{name: "mint fails", fixture: mintFailure, wantBlocks: 2},
		{name: "store fails", fixture: storeFailure, wantBlocks: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := tc.fixture(t)
			ctx := context.Background()

			_, err := f.passes.Purchase(ctx, service.PurchasePassRequest{
				UserID:       "student-1",
				Origin:       "Sasaram",
				Destination:  "Dehri-on-Sone",
				Type:         domain.PassTypeStudent,
				ValidityDays: 30,
				Price:        200,
			})
			if err == nil {
				t.Fatal("expected purchase error")
			}

			if got := balanceOf(t, f.wallets, "student-1"); got != 500 {
				t.Errorf("balance = %d, want 500 after refund", got)
			}
			passes, err := f.passes.ListByUser(ctx, "student-1")
			if err != nil {
				t.Fatalf("ListByUser: %v", err)
			}
			if len(passes) != 0 {
				t.Errorf("passes = %d, want 0", len(passes))
			}
			if n := blockCount(t, f.chain); n != tc.wantBlocks {
				t.Errorf("blocks = %d, want %d", n, tc.wantBlocks)
			}
			if report, err := f.chain.Verify(ctx); err != nil || !report.Valid {
				t.Errorf("chain invalid after refund: %+v %v", report, err)
			}
		})
	}
}
