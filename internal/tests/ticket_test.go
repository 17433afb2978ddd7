package tests

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"villagelink/internal/domain"
	"villagelink/internal/fleet"
	"villagelink/internal/repository"
	"villagelink/internal/repository/memory"
	"villagelink/internal/service"
)

// ──────────────────────────────────────────────
// 6. TICKETS
// ──────────────────────────────────────────────

const treasuryID = "treasury"

type ticketFixture struct {
	tickets *service.TicketService
	wallets *service.WalletService
	chain   *service.LedgerChain
	fares   *service.FareEngine
	hub     *fleet.Hub
	now     time.Time
}

func newTicketFixture(t *testing.T, starting int64) *ticketFixture {
	t.Helper()
	return newTicketFixtureWithRepo(t, starting, memory.NewTicketRepository())
}

func newTicketFixtureWithRepo(t *testing.T, starting int64, repo repository.TicketRepository) *ticketFixture {
	t.Helper()
	dir, graph := loadNetwork(t)
	resolver := service.NewRouteResolver(nil, dir, graph, nil, nil, service.RouteResolverConfig{Timeout: time.Second, CorridorWidthSq: 0.0001})
	fares := service.NewFareEngine(service.DefaultFareConfig(), time.UTC)
	chain := service.NewLedgerChain(memory.NewLedgerRepository(), "VL-TEST", nil)
	wallets := service.NewWalletService(memory.NewWalletRepository(), chain, nil, nil, service.WalletConfig{StartingBalance: starting})
	hub := fleet.NewHub(fleet.Options{})
	t.Cleanup(hub.Close)

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	tickets := service.NewTicketService(repo, resolver, fares, wallets, hub, treasuryID)
	tickets.SetClock(func() time.Time { return now })

	return &ticketFixture{tickets: tickets, wallets: wallets, chain: chain, fares: fares, hub: hub, now: now}
}

func (f *ticketFixture) book(t *testing.T, method domain.PaymentMethod, count int) *domain.Ticket {
	t.Helper()
	tk, err := f.tickets.Book(context.Background(), service.BookTicketRequest{
		PassengerID:    "p-1",
		Origin:         "Sasaram",
		Destination:    "Dehri-on-Sone",
		PassengerCount: count,
		PaymentMethod:  method,
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return tk
}

func TestTicketBook_CashIsPending(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 0)
	sub, err := f.hub.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	<-sub.Events()

	tk := f.book(t, "", 2)

	if tk.Status != domain.TicketStatusPending || tk.PaymentMethod != domain.PaymentMethodCash {
		t.Errorf("ticket status %s method %s", tk.Status, tk.PaymentMethod)
	}
	if tk.Origin != "Sasaram" || tk.Destination != "Dehri-on-Sone" || len(tk.Path) < 2 {
		t.Errorf("ticket route = %s -> %s via %v", tk.Origin, tk.Destination, tk.Path)
	}
	if want := f.fares.QuoteAt(tk.DistanceKm, f.now).Total * 2; tk.Price != want {
		t.Errorf("price = %d, want %d", tk.Price, want)
	}

	select {
	case evt := <-sub.Events():
		if evt.Type != fleet.EventTicketBooked || evt.Ticket == nil || evt.Ticket.ID != tk.ID {
			t.Errorf("event = %+v, want ticket_booked for %s", evt, tk.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no ticket_booked event")
	}

	if open := f.hub.OpenTickets(); len(open) != 1 {
		t.Errorf("open tickets = %d, want 1", len(open))
	}
}

func TestTicketBook_GramCoinPaysTreasury(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 1000)
	tk := f.book(t, domain.PaymentMethodGramCoin, 1)

	if tk.Status != domain.TicketStatusPaid {
		t.Errorf("status = %s, want PAID", tk.Status)
	}

	passenger, err := f.wallets.GetWallet(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	treasury, err := f.wallets.GetWallet(context.Background(), treasuryID)
	if err != nil {
		t.Fatalf("GetWallet treasury: %v", err)
	}
	if passenger.Balance != 1000-tk.Price || treasury.Balance != 1000+tk.Price {
		t.Errorf("balances passenger %d treasury %d for price %d", passenger.Balance, treasury.Balance, tk.Price)
	}
}

func TestTicketBook_GramCoinInsufficient(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 5)
	_, err := f.tickets.Book(context.Background(), service.BookTicketRequest{
		PassengerID:   "p-1",
		Origin:        "Sasaram",
		Destination:   "Dehri-on-Sone",
		PaymentMethod: domain.PaymentMethodGramCoin,
	})
	if !errors.Is(err, service.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if open := f.hub.OpenTickets(); len(open) != 0 {
		t.Errorf("open tickets = %d, want 0", len(open))
	}
	list, _ := f.tickets.ListByPassenger(context.Background(), "p-1")
	if len(list) != 0 {
		t.Errorf("stored tickets = %d, want 0", len(list))
	}
}

func TestTicketBook_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		req     service.BookTicketRequest
		wantErr error
	}{
		{name: "no passenger", req: service.BookTicketRequest{Origin: "Sasaram", Destination: "Suara"}, wantErr: service.ErrInvalidPassengerID},
		{name: "no origin", req: service.BookTicketRequest{PassengerID: "p", Destination: "Suara"}, wantErr: service.ErrInvalidStop},
		{name: "negative count", req: service.BookTicketRequest{PassengerID: "p", Origin: "Sasaram", Destination: "Suara", PassengerCount: -1}, wantErr: service.ErrInvalidPassengerCount},
		{name: "count above limit", req: service.BookTicketRequest{PassengerID: "p", Origin: "Sasaram", Destination: "Suara", PassengerCount: service.MaxPassengersPerTicket + 1}, wantErr: service.ErrInvalidPassengerCount},
		{name: "huge count", req: service.BookTicketRequest{PassengerID: "p", Origin: "Sasaram", Destination: "Suara", PassengerCount: math.MaxInt / 10}, wantErr: service.ErrInvalidPassengerCount},
		{name: "unknown payment", req: service.BookTicketRequest{PassengerID: "p", Origin: "Sasaram", Destination: "Suara", PaymentMethod: "BARTER"}, wantErr: service.ErrInvalidPaymentMethod},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newTicketFixture(t, 0)
			if _, err := f.tickets.Book(context.Background(), tc.req); !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTicketUpdateStatus_Transitions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		path    []domain.TicketStatus
		wantErr bool
	}{
		{name: "pay then board then complete", path: []domain.TicketStatus{domain.TicketStatusPaid, domain.TicketStatusBoarded, domain.TicketStatusCompleted}},
		{name: "board with cash", path: []domain.TicketStatus{domain.TicketStatusBoarded, domain.TicketStatusCompleted}},
		{name: "skip to completed", path: []domain.TicketStatus{domain.TicketStatusCompleted}, wantErr: true},
		{name: "same status", path: []domain.TicketStatus{domain.TicketStatusPending}, wantErr: true},
		{name: "backwards", path: []domain.TicketStatus{domain.TicketStatusBoarded, domain.TicketStatusPaid}, wantErr: true},
		{name: "after completion", path: []domain.TicketStatus{domain.TicketStatusBoarded, domain.TicketStatusCompleted, domain.TicketStatusBoarded}, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newTicketFixture(t, 0)
			tk := f.book(t, domain.PaymentMethodCash, 1)

			var err error
			for _, status := range tc.path {
				_, err = f.tickets.UpdateStatus(context.Background(), service.UpdateTicketStatusRequest{
					TicketID:   tk.ID,
					Status:     status,
					OperatorID: "op-1",
				})
				if err != nil {
					break
				}
			}

			if tc.wantErr {
				if !errors.Is(err, service.ErrInvalidTicketTransition) {
					t.Errorf("err = %v, want ErrInvalidTicketTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
		})
	}
}

func TestTicketUpdateStatus_CompletedLeavesOpenSet(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 0)
	tk := f.book(t, domain.PaymentMethodCash, 1)
	ctx := context.Background()

	updated, err := f.tickets.UpdateStatus(ctx, service.UpdateTicketStatusRequest{TicketID: tk.ID, Status: domain.TicketStatusBoarded, OperatorID: "op-7"})
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if updated.OperatorID != "op-7" {
		t.Errorf("operator = %q, want op-7", updated.OperatorID)
	}
	if open := f.hub.OpenTickets(); len(open) != 1 || open[0].Status != domain.TicketStatusBoarded {
		t.Errorf("open tickets = %+v", open)
	}

	if _, err := f.tickets.UpdateStatus(ctx, service.UpdateTicketStatusRequest{TicketID: tk.ID, Status: domain.TicketStatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if open := f.hub.OpenTickets(); len(open) != 0 {
		t.Errorf("open tickets = %d after completion, want 0", len(open))
	}

	stored, err := f.tickets.GetTicket(ctx, tk.ID)
	if err != nil || stored.Status != domain.TicketStatusCompleted {
		t.Errorf("stored = %+v, %v", stored, err)
	}
}

func TestTicketUpdateStatus_Unknown(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 0)
	_, err := f.tickets.UpdateStatus(context.Background(), service.UpdateTicketStatusRequest{TicketID: "nope", Status: domain.TicketStatusPaid})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTicketBook_MaxPassengersAccepted(t *testing.T) {
	t.Parallel()

	f := newTicketFixture(t, 0)
	tk := f.book(t, domain.PaymentMethodCash, service.MaxPassengersPerTicket)

	if want := f.fares.QuoteAt(tk.DistanceKm, f.now).Total * service.MaxPassengersPerTicket; tk.Price != want || tk.Price <= 0 {
		t.Errorf("price = %d, want %d", tk.Price, want)
	}
}

func TestTicketBook_StoreFailureRefundsGramCoin(t *testing.T) {
	t.Parallel()

	f := newTicketFixtureWithRepo(t, 500, NewFailingTicketRepository(errors.New("db down")))
	ctx := context.Background()

	_, err := f.tickets.Book(ctx, service.BookTicketRequest{
		PassengerID:   "p-1",
		Origin:        "Sasaram",
		Destination:   "Dehri-on-Sone",
		PaymentMethod: domain.PaymentMethodGramCoin,
	})
	if err == nil {
		t.Fatal("expected store error")
	}

	if got := balanceOf(t, f.wallets, "p-1"); got != 500 {
		t.Errorf("passenger balance = %d, want 500", got)
	}
	if got := balanceOf(t, f.wallets, treasuryID); got != 500 {
		t.Errorf("treasury balance = %d, want 500", got)
	}
	if n := blockCount(t, f.chain); n != 2 {
		t.Errorf("blocks = %d, want payment and refund", n)
	}
	if report, err := f.chain.Verify(ctx); err != nil || !report.Valid {
		t.Errorf("chain invalid after refund: %+v %v", report, err)
	}
	if open := f.hub.OpenTickets(); len(open) != 0 {
		t.Errorf("open tickets = %d, want 0", len(open))
	}
}

func TestTicketBook_StoreFailureCashChargesNothing(t *testing.T) {
	t.Parallel()

	f := newTicketFixtureWithRepo(t, 500, NewFailingTicketRepository(errors.New("db down")))

	_, err := f.tickets.Book(context.Background(), service.BookTicketRequest{
		PassengerID: "p-1",
		Origin:      "Sasaram",
		Destination: "Dehri-on-Sone",
	})
	if err == nil {
		t.Fatal("expected store error")
	}
	if n := blockCount(t, f.chain); n != 0 {
		t.Errorf("blocks = %d, want 0", n)
	}
}
