package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"villagelink/internal/domain"
	"villagelink/internal/keylock"
	"villagelink/internal/repository"
)

// Pass verification failure reasons.
const (
	PassReasonUsedToday = "pass already used today"
	PassReasonExpired   = "pass expired"
)

// PassService issues travel passes as ledger-minted tokens and checks them at
// boarding.
type PassService struct {
	repo    repository.PassRepository
	ledger  *LedgerChain
	wallets *WalletService
	locks   *keylock.Map
	loc     *time.Location
	now     func() time.Time
}

// NewPassService creates a new PassService. Usage days are computed in loc.
func NewPassService(repo repository.PassRepository, ledger *LedgerChain, wallets *WalletService, loc *time.Location) *PassService {
	if loc == nil {
		loc = time.UTC
	}
	return &PassService{
		repo:    repo,
		ledger:  ledger,
		wallets: wallets,
		locks:   keylock.New(),
		loc:     loc,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *PassService) SetClock(now func() time.Time) {
	s.now = now
}

// PurchasePassRequest contains the parameters for buying a pass.
type PurchasePassRequest struct {
	UserID       string
	Origin       string
	Destination  string
	Type         domain.PassType
	ValidityDays int
	Price        int64
}

// PassVerification reports the outcome of a boarding check. A failed check
// leaves the pass unchanged.
type PassVerification struct {
	Success bool
	Reason  string
	Pass    *domain.Pass
}

// Purchase charges the buyer's wallet, mints the pass on the ledger and
// stores it.
func (s *PassService) Purchase(ctx context.Context, req PurchasePassRequest) (*domain.Pass, error) {
	if req.UserID == "" {
		return nil, ErrInvalidPassengerID
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return nil, ErrInvalidStop
	}
	if !validPassType(req.Type) {
		return nil, ErrInvalidPassType
	}
	if req.ValidityDays <= 0 {
		return nil, ErrInvalidValidity
	}
	if req.Price < 0 {
		return nil, ErrInvalidAmount
	}

	passID := uuid.New().String()

	if req.Price > 0 {
		if _, err := s.wallets.EnsureWallet(ctx, req.UserID); err != nil {
			return nil, err
		}
		if _, err := s.wallets.Spend(ctx, req.UserID, req.Price, fmt.Sprintf("%s pass %s-%s", req.Type, req.Origin, req.Destination), passID); err != nil {
			return nil, err
		}
	}

	block, err := s.ledger.AddBlock(ctx, map[string]any{
		"type":     domain.LedgerTypeNFTMint,
		"owner":    req.UserID,
		"asset":    "PASS",
		"passId":   passID,
		"passType": req.Type,
		"route":    req.Origin + "-" + req.Destination,
	})
	if err != nil {
		s.refund(ctx, req, passID)
		return nil, fmt.Errorf("mint pass: %w", err)
	}

	now := s.now()
	pass := &domain.Pass{
		ID:           passID,
		UserID:       req.UserID,
		Origin:       req.Origin,
		Destination:  req.Destination,
		Type:         req.Type,
		ValidityDays: req.ValidityDays,
		Price:        req.Price,
		UsedDates:    []string{},
		PurchasedAt:  now,
		ExpiresAt:    now.AddDate(0, 0, req.ValidityDays),
		NFTTokenID:   block.Hash,
	}
	if err := s.repo.Create(ctx, pass); err != nil {
		s.refund(ctx, req, passID)
		return nil, fmt.Errorf("store pass: %w", err)
	}

	log.Printf("[pass] minted %s pass %s for %s (block %d)", pass.Type, pass.ID, pass.UserID, block.Index)
	return pass, nil
}

// refund returns the price of a pass that was charged but never issued.
func (s *PassService) refund(ctx context.Context, req PurchasePassRequest, passID string) {
	if req.Price <= 0 {
		return
	}
	if _, err := s.wallets.Earn(ctx, req.UserID, req.Price, "refund", passID); err != nil {
		log.Printf("[pass] CRITICAL: failed to refund %d tokens to %s for pass %s: %v", req.Price, req.UserID, passID, err)
		return
	}
	log.Printf("[pass] refunded %d tokens to %s for unissued pass %s", req.Price, req.UserID, passID)
}

// Verify checks a pass for boarding and, on success, records today as used.
func (s *PassService) Verify(ctx context.Context, passID string) (*PassVerification, error) {
	if passID == "" {
		return nil, ErrInvalidPassID
	}

	unlock := s.locks.Lock(passID)
	defer unlock()

	pass, err := s.repo.GetByID(ctx, passID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	today := now.Format(domain.PassDateLayout)

	if pass.UsedOn(today) {
		return &PassVerification{Success: false, Reason: PassReasonUsedToday, Pass: pass}, nil
	}
	if now.After(pass.ExpiresAt) {
		return &PassVerification{Success: false, Reason: PassReasonExpired, Pass: pass}, nil
	}

	if err := s.repo.AddUsedDate(ctx, passID, today); err != nil {
		return nil, err
	}
	pass.UsedDates = append(pass.UsedDates, today)

	return &PassVerification{Success: true, Pass: pass}, nil
}

// GetPass retrieves a pass by ID.
func (s *PassService) GetPass(ctx context.Context, passID string) (*domain.Pass, error) {
	if passID == "" {
		return nil, ErrInvalidPassID
	}
	return s.repo.GetByID(ctx, passID)
}

// ListByUser returns a user's passes, newest first.
func (s *PassService) ListByUser(ctx context.Context, userID string) ([]*domain.Pass, error) {
	if userID == "" {
		return nil, ErrInvalidPassengerID
	}
	return s.repo.ListByUser(ctx, userID)
}

func validPassType(t domain.PassType) bool {
	switch t {
	case domain.PassTypeMonthly, domain.PassTypeStudent, domain.PassTypeVidyaVahan:
		return true
	}
	return false
}
