package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"villagelink/internal/domain"
	"villagelink/internal/keylock"
	"villagelink/internal/repository"
)

// TicketBroadcaster publishes ticket changes to live subscribers.
type TicketBroadcaster interface {
	BookTicket(ctx context.Context, ticket domain.Ticket)
	UpdateTicket(ctx context.Context, ticket domain.Ticket)
}

// MaxPassengersPerTicket bounds how many seats one booking may cover.
const MaxPassengersPerTicket = 20

// ticketTransitions lists the allowed status changes.
var ticketTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending: {domain.TicketStatusPaid, domain.TicketStatusBoarded},
	domain.TicketStatusPaid:    {domain.TicketStatusBoarded},
	domain.TicketStatusBoarded: {domain.TicketStatusCompleted},
}

// TicketService books and tracks passenger tickets.
type TicketService struct {
	repo       repository.TicketRepository
	resolver   *RouteResolver
	fares      *FareEngine
	wallets    *WalletService
	hub        TicketBroadcaster
	treasuryID string
	locks      *keylock.Map
	now        func() time.Time
}

// NewTicketService creates a new TicketService. GRAMCOIN payments are
// transferred to treasuryID.
func NewTicketService(
	repo repository.TicketRepository,
	resolver *RouteResolver,
	fares *FareEngine,
	wallets *WalletService,
	hub TicketBroadcaster,
	treasuryID string,
) *TicketService {
	return &TicketService{
		repo:       repo,
		resolver:   resolver,
		fares:      fares,
		wallets:    wallets,
		hub:        hub,
		treasuryID: treasuryID,
		locks:      keylock.New(),
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (s *TicketService) SetClock(now func() time.Time) {
	s.now = now
}

// BookTicketRequest contains the parameters for booking a ticket.
type BookTicketRequest struct {
	PassengerID    string
	OperatorID     string
	Origin         string
	Destination    string
	PassengerCount int
	PaymentMethod  domain.PaymentMethod
}

// UpdateTicketStatusRequest contains the parameters for a status change.
type UpdateTicketStatusRequest struct {
	TicketID      string
	Status        domain.TicketStatus
	OperatorID    string
	PaymentMethod domain.PaymentMethod
}

// Book resolves the route, prices it for the current hour and stores the
// ticket. GRAMCOIN bookings are paid immediately from the passenger's wallet.
func (s *TicketService) Book(ctx context.Context, req BookTicketRequest) (*domain.Ticket, error) {
	if req.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return nil, ErrInvalidStop
	}
	if req.PassengerCount == 0 {
		req.PassengerCount = 1
	}
	if req.PassengerCount < 0 || req.PassengerCount > MaxPassengersPerTicket {
		return nil, ErrInvalidPassengerCount
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if !validPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	now := s.now()
	resolved := s.resolver.Resolve(ctx, req.Origin, req.Destination)
	quote := s.fares.QuoteAt(resolved.DistanceKm, now)

	ticket := &domain.Ticket{
		ID:             uuid.New().String(),
		PassengerID:    req.PassengerID,
		OperatorID:     req.OperatorID,
		Origin:         resolved.Path[0],
		Destination:    resolved.Path[len(resolved.Path)-1],
		Path:           resolved.Path,
		DistanceKm:     resolved.DistanceKm,
		Status:         domain.TicketStatusPending,
		Price:          quote.Total * int64(req.PassengerCount),
		PassengerCount: req.PassengerCount,
		PaymentMethod:  req.PaymentMethod,
		FareLabel:      quote.Label,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.PaymentMethod == domain.PaymentMethodGramCoin {
		if err := s.payWithTokens(ctx, ticket); err != nil {
			return nil, err
		}
		ticket.Status = domain.TicketStatusPaid
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		if ticket.Status == domain.TicketStatusPaid {
			s.refundTokens(ctx, ticket)
		}
		return nil, fmt.Errorf("store ticket: %w", err)
	}

	log.Printf("[ticket] booked %s for %s: %s -> %s, %d tokens (%s)",
		ticket.ID, ticket.PassengerID, ticket.Origin, ticket.Destination, ticket.Price, ticket.Status)

	s.hub.BookTicket(ctx, *ticket)
	return ticket, nil
}

func (s *TicketService) payWithTokens(ctx context.Context, ticket *domain.Ticket) error {
	if _, err := s.wallets.EnsureWallet(ctx, ticket.PassengerID); err != nil {
		return err
	}
	if _, err := s.wallets.EnsureWallet(ctx, s.treasuryID); err != nil {
		return err
	}
	result, err := s.wallets.Transfer(ctx, TransferRequest{
		From:            ticket.PassengerID,
		To:              s.treasuryID,
		Amount:          ticket.Price,
		Reason:          fmt.Sprintf("ticket %s-%s", ticket.Origin, ticket.Destination),
		RelatedEntityID: ticket.ID,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		if result.Reason == ErrInvalidAmount.Error() {
			return ErrInvalidAmount
		}
		return ErrInsufficientBalance
	}
	return nil
}

// refundTokens returns a GRAMCOIN payment whose ticket could not be stored.
func (s *TicketService) refundTokens(ctx context.Context, ticket *domain.Ticket) {
	result, err := s.wallets.Transfer(ctx, TransferRequest{
		From:            s.treasuryID,
		To:              ticket.PassengerID,
		Amount:          ticket.Price,
		Reason:          fmt.Sprintf("refund ticket %s-%s", ticket.Origin, ticket.Destination),
		RelatedEntityID: ticket.ID,
	})
	if err != nil || !result.Success {
		log.Printf("[ticket] CRITICAL: failed to refund %d tokens to %s for unstored ticket %s: %v",
			ticket.Price, ticket.PassengerID, ticket.ID, err)
		return
	}
	log.Printf("[ticket] refunded %d tokens to %s for unstored ticket %s", ticket.Price, ticket.PassengerID, ticket.ID)
}

// UpdateStatus moves a ticket forward in its lifecycle.
func (s *TicketService) UpdateStatus(ctx context.Context, req UpdateTicketStatusRequest) (*domain.Ticket, error) {
	if req.TicketID == "" {
		return nil, ErrInvalidTicketID
	}
	if req.PaymentMethod != "" && !validPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	unlock := s.locks.Lock(req.TicketID)
	defer unlock()

	ticket, err := s.repo.GetByID(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}
	if !canTransition(ticket.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTicketTransition, ticket.Status, req.Status)
	}

	ticket.Status = req.Status
	if req.OperatorID != "" {
		ticket.OperatorID = req.OperatorID
	}
	if req.PaymentMethod != "" {
		ticket.PaymentMethod = req.PaymentMethod
	}
	ticket.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	s.hub.UpdateTicket(ctx, *ticket)
	return ticket, nil
}

// GetTicket retrieves a ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if ticketID == "" {
		return nil, ErrInvalidTicketID
	}
	t, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// ListByPassenger returns a passenger's tickets, newest first.
func (s *TicketService) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Ticket, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	return s.repo.ListByPassenger(ctx, passengerID)
}

func canTransition(from, to domain.TicketStatus) bool {
	for _, next := range ticketTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validPaymentMethod(m domain.PaymentMethod) bool {
	switch m {
	case domain.PaymentMethodCash, domain.PaymentMethodOnline, domain.PaymentMethodGramCoin, domain.PaymentMethodNone:
		return true
	}
	return false
}
