package tests

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/repository/memory"
	"villagelink/internal/service"
)

// ──────────────────────────────────────────────
// 3. LEDGER CHAIN
// ──────────────────────────────────────────────

func TestLedger_GenesisAndLinks(t *testing.T) {
	t.Parallel()

	repo := memory.NewLedgerRepository()
	chain := service.NewLedgerChain(repo, "VL-TEST", nil)
	chain.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	ctx := context.Background()

	genesis, err := chain.AddBlock(ctx, map[string]any{"type": domain.LedgerTypeTokenEarn, "amount": 5})
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if genesis.Index != 0 || genesis.PreviousHash != domain.GenesisPreviousHash {
		t.Errorf("genesis index %d previous %q", genesis.Index, genesis.PreviousHash)
	}
	if genesis.Validator != "VL-TEST" {
		t.Errorf("validator = %q", genesis.Validator)
	}

	next, err := chain.AddBlock(ctx, map[string]any{"type": domain.LedgerTypeTokenSpend, "amount": 2})
	if err != nil {
		t.Fatalf("second block: %v", err)
	}
	if next.Index != 1 || next.PreviousHash != genesis.Hash {
		t.Errorf("block 1 index %d previous %q, want 1 %q", next.Index, next.PreviousHash, genesis.Hash)
	}

	want := service.HashBlock(next.Index, next.PreviousHash, next.Timestamp, next.Payload)
	if next.Hash != want {
		t.Errorf("hash = %s, want %s", next.Hash, want)
	}
}

func TestLedger_CanonicalPayload(t *testing.T) {
	t.Parallel()

	chain := service.NewLedgerChain(memory.NewLedgerRepository(), "VL-TEST", nil)

	block, err := chain.AddBlock(context.Background(), json.RawMessage(`{ "b": 1, "a": {"d": 12345678901234567890, "c": "x<y"} }`))
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	want := `{"a":{"c":"x<y","d":12345678901234567890},"b":1}`
	if string(block.Payload) != want {
		t.Errorf("payload = %s, want %s", block.Payload, want)
	}
}

func TestLedger_RejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	chain := service.NewLedgerChain(memory.NewLedgerRepository(), "VL-TEST", nil)

	for _, payload := range []any{nil, json.RawMessage(""), json.RawMessage("null")} {
		if _, err := chain.AddBlock(context.Background(), payload); !errors.Is(err, service.ErrEmptyPayload) {
			t.Errorf("payload %v: err = %v, want ErrEmptyPayload", payload, err)
		}
	}
	if _, err := chain.AddBlock(context.Background(), json.RawMessage("{broken")); !errors.Is(err, service.ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestLedger_VerifyDetectsTampering(t *testing.T) {
	t.Parallel()

	repo := NewTamperingLedgerRepository()
	chain := service.NewLedgerChain(repo, "VL-TEST", nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := chain.AddBlock(ctx, map[string]any{"seq": i}); err != nil {
			t.Fatalf("AddBlock %d: %v", i, err)
		}
	}

	report, err := chain.Verify(ctx)
	if err != nil || !report.Valid || report.CheckedBlocks != 4 {
		t.Fatalf("clean chain: report %+v err %v", report, err)
	}

	repo.Tamper(2, func(b *domain.LedgerBlock) {
		b.Payload = json.RawMessage(`{"seq":99}`)
	})

	report, err = chain.Verify(ctx)
	if !errors.Is(err, service.ErrChainIntegrity) {
		t.Fatalf("err = %v, want ErrChainIntegrity", err)
	}
	if report.Valid || report.BrokenAt != 2 || report.TrustedUntil != 1 {
		t.Errorf("report = %+v, want broken at 2 trusted until 1", report)
	}
}

func TestLedger_VerifyDetectsRelinking(t *testing.T) {
	t.Parallel()

	repo := NewTamperingLedgerRepository()
	chain := service.NewLedgerChain(repo, "VL-TEST", nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := chain.AddBlock(ctx, map[string]any{"seq": i}); err != nil {
			t.Fatalf("AddBlock %d: %v", i, err)
		}
	}

	// Rewrite block 1 consistently with itself; block 2 now points at a hash
	// that no longer exists.
	repo.Tamper(1, func(b *domain.LedgerBlock) {
		b.Payload = json.RawMessage(`{"seq":42}`)
		b.Hash = service.HashBlock(b.Index, b.PreviousHash, b.Timestamp, b.Payload)
	})

	report, err := chain.Verify(ctx)
	if !errors.Is(err, service.ErrChainIntegrity) {
		t.Fatalf("err = %v, want ErrChainIntegrity", err)
	}
	if report.BrokenAt != 2 {
		t.Errorf("broken at %d, want 2", report.BrokenAt)
	}
}

func TestLedger_ConcurrentAppendsFormOneChain(t *testing.T) {
	t.Parallel()

	repo := memory.NewLedgerRepository()
	chain := service.NewLedgerChain(repo, "VL-TEST", nil)
	ctx := context.Background()

	const writers = 50
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := chain.AddBlock(ctx, map[string]any{"writer": i}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("append failed: %v", err)
	}

	blocks, err := chain.Blocks(ctx, 0, writers+1)
	if err != nil {
		t.Fatalf("Blocks: %v", err)
	}
	if len(blocks) != writers {
		t.Fatalf("blocks = %d, want %d", len(blocks), writers)
	}
	for i, b := range blocks {
		if b.Index != int64(i) {
			t.Errorf("block %d has index %d", i, b.Index)
		}
	}

	report, err := chain.Verify(ctx)
	if err != nil || !report.Valid {
		t.Errorf("chain invalid after concurrent appends: %+v %v", report, err)
	}
}

func TestLedger_AppendFailureDoesNotAdvanceTail(t *testing.T) {
	t.Parallel()

	repo := NewFailingLedgerRepository()
	chain := service.NewLedgerChain(repo, "VL-TEST", nil)
	ctx := context.Background()

	if _, err := chain.AddBlock(ctx, map[string]any{"n": 0}); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	repo.AppendError = errors.New("disk full")
	if _, err := chain.AddBlock(ctx, map[string]any{"n": 1}); err == nil {
		t.Fatal("expected append error")
	}

	repo.AppendError = nil
	block, err := chain.AddBlock(ctx, map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("AddBlock after failure: %v", err)
	}
	if block.Index != 1 {
		t.Errorf("index = %d, want 1", block.Index)
	}
}
