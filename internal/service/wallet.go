package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"villagelink/internal/domain"
	"villagelink/internal/keylock"
	"villagelink/internal/redis"
	"villagelink/internal/repository"
)

// Transfer results reported to metrics.
const (
	transferResultOK           = "ok"
	transferResultInsufficient = "insufficient_balance"
	transferResultInvalid      = "invalid_amount"
	transferResultError        = "error"
)

// WalletMetrics records wallet activity.
type WalletMetrics interface {
	WalletTransfer(result string)
}

// WalletConfig contains wallet settings.
type WalletConfig struct {
	StartingBalance int64         // Balance credited to a newly opened wallet
	LockTTL         time.Duration // Lifetime of a distributed wallet lock
}

// WalletService moves tokens between wallets and records every movement on
// the ledger. Each owner's check-debit-persist-record unit is exclusive.
type WalletService struct {
	repo     repository.WalletRepository
	ledger   *LedgerChain
	locks    *keylock.Map
	distLock redis.LockStoreInterface
	metrics  WalletMetrics
	config   WalletConfig
	now      func() time.Time
}

// NewWalletService creates a new WalletService. distLock and metrics may be nil.
func NewWalletService(
	repo repository.WalletRepository,
	ledger *LedgerChain,
	distLock redis.LockStoreInterface,
	metrics WalletMetrics,
	config WalletConfig,
) *WalletService {
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Second
	}
	return &WalletService{
		repo:     repo,
		ledger:   ledger,
		locks:    keylock.New(),
		distLock: distLock,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *WalletService) SetClock(now func() time.Time) {
	s.now = now
}

// TransferRequest contains the parameters for a wallet-to-wallet transfer.
type TransferRequest struct {
	From            string
	To              string
	Amount          int64
	Reason          string
	RelatedEntityID string
}

// TransferResult reports whether a transfer happened. A rejected transfer
// leaves both wallets untouched.
type TransferResult struct {
	Success bool
	Reason  string
	From    *domain.Wallet
	To      *domain.Wallet
	Block   *domain.LedgerBlock
}

// EnsureWallet returns the owner's wallet, opening it with the starting
// balance if it does not exist yet.
func (s *WalletService) EnsureWallet(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}

	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	w = &domain.Wallet{
		OwnerID:   ownerID,
		Balance:   s.config.StartingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.repo.GetByOwner(ctx, ownerID)
		}
		return nil, err
	}
	log.Printf("[wallet] opened wallet for %s with %d tokens", ownerID, w.Balance)
	return w, nil
}

// GetWallet retrieves a wallet by owner.
func (s *WalletService) GetWallet(ctx context.Context, ownerID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.repo.GetByOwner(ctx, ownerID)
}

// Transactions returns an owner's history, newest first.
func (s *WalletService) Transactions(ctx context.Context, ownerID string, limit int) ([]*domain.WalletTransaction, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.repo.ListTransactions(ctx, ownerID, limit)
}

// Transfer moves Amount tokens from one wallet to another and appends one
// TOKEN_TRANSFER block. Success is false when the amount is not positive or
// the sender cannot cover it.
func (s *WalletService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.From == "" || req.To == "" {
		return nil, ErrInvalidOwnerID
	}
	if req.From == req.To {
		return nil, ErrSelfTransfer
	}
	if req.Amount <= 0 {
		s.record(transferResultInvalid)
		return &TransferResult{Success: false, Reason: ErrInvalidAmount.Error()}, nil
	}

	unlock, err := s.lockOwners(ctx, req.From, req.To)
	if err != nil {
		s.record(transferResultError)
		return nil, err
	}
	defer unlock()

	from, err := s.repo.GetByOwner(ctx, req.From)
	if err != nil {
		s.record(transferResultError)
		return nil, fmt.Errorf("load sender wallet: %w", err)
	}
	to, err := s.repo.GetByOwner(ctx, req.To)
	if err != nil {
		s.record(transferResultError)
		return nil, fmt.Errorf("load receiver wallet: %w", err)
	}

	if from.Balance < req.Amount {
		s.record(transferResultInsufficient)
		return &TransferResult{Success: false, Reason: ErrInsufficientBalance.Error(), From: from, To: to}, nil
	}

	now := s.now()
	newFrom := *from
	newFrom.Balance -= req.Amount
	newFrom.UpdatedAt = now
	newTo := *to
	newTo.Balance += req.Amount
	newTo.UpdatedAt = now

	debit := &domain.WalletTransaction{
		ID:              uuid.New().String(),
		OwnerID:         req.From,
		Type:            domain.TransactionTypeSpend,
		Amount:          req.Amount,
		Description:     req.Reason,
		RelatedEntityID: req.RelatedEntityID,
		Timestamp:       now,
	}
	credit := &domain.WalletTransaction{
		ID:              uuid.New().String(),
		OwnerID:         req.To,
		Type:            domain.TransactionTypeEarn,
		Amount:          req.Amount,
		Description:     req.Reason,
		RelatedEntityID: req.RelatedEntityID,
		Timestamp:       now,
	}

	if err := s.repo.Save(ctx, []*domain.Wallet{&newFrom, &newTo}, []*domain.WalletTransaction{debit, credit}); err != nil {
		s.record(transferResultError)
		return nil, fmt.Errorf("persist transfer: %w", err)
	}

	block, err := s.ledger.AddBlock(ctx, map[string]any{
		"type":           domain.LedgerTypeTokenTransfer,
		"from":           req.From,
		"to":             req.To,
		"amount":         req.Amount,
		"reason":         req.Reason,
		"transactionIds": []string{debit.ID, credit.ID},
	})
	if err != nil {
		s.revert(ctx, []*domain.Wallet{from, to}, []string{debit.ID, credit.ID})
		s.record(transferResultError)
		return nil, err
	}

	s.record(transferResultOK)
	log.Printf("[wallet] transferred %d tokens %s -> %s (block %d)", req.Amount, req.From, req.To, block.Index)

	return &TransferResult{Success: true, From: &newFrom, To: &newTo, Block: block}, nil
}

// Earn credits a wallet and records a TOKEN_EARN block.
func (s *WalletService) Earn(ctx context.Context, ownerID string, amount int64, description, relatedID string) (*domain.Wallet, error) {
	return s.adjust(ctx, ownerID, amount, domain.TransactionTypeEarn, description, relatedID)
}

// Spend debits a wallet and records a TOKEN_SPEND block.
func (s *WalletService) Spend(ctx context.Context, ownerID string, amount int64, description, relatedID string) (*domain.Wallet, error) {
	return s.adjust(ctx, ownerID, amount, domain.TransactionTypeSpend, description, relatedID)
}

func (s *WalletService) adjust(ctx context.Context, ownerID string, amount int64, txType domain.TransactionType, description, relatedID string) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	unlock, err := s.lockOwners(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	updated := *w
	ledgerType := domain.LedgerTypeTokenEarn
	if txType == domain.TransactionTypeSpend {
		if w.Balance < amount {
			return nil, ErrInsufficientBalance
		}
		updated.Balance -= amount
		ledgerType = domain.LedgerTypeTokenSpend
	} else {
		updated.Balance += amount
	}
	now := s.now()
	updated.UpdatedAt = now

	tx := &domain.WalletTransaction{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Type:            txType,
		Amount:          amount,
		Description:     description,
		RelatedEntityID: relatedID,
		Timestamp:       now,
	}
	if err := s.repo.Save(ctx, []*domain.Wallet{&updated}, []*domain.WalletTransaction{tx}); err != nil {
		return nil, fmt.Errorf("persist %s: %w", txType, err)
	}

	if _, err := s.ledger.AddBlock(ctx, map[string]any{
		"type":          ledgerType,
		"owner":         ownerID,
		"amount":        amount,
		"description":   description,
		"transactionId": tx.ID,
	}); err != nil {
		s.revert(ctx, []*domain.Wallet{w}, []string{tx.ID})
		return nil, err
	}

	return &updated, nil
}

// revert undoes a persisted balance change whose ledger record failed.
func (s *WalletService) revert(ctx context.Context, original []*domain.Wallet, txIDs []string) {
	if err := s.repo.Revert(ctx, original, txIDs); err != nil {
		log.Printf("[wallet] CRITICAL: failed to revert unrecorded change %v: %v", txIDs, err)
	}
}

// lockOwners takes the in-process locks and, when configured, the
// distributed locks for every owner, in sorted order.
func (s *WalletService) lockOwners(ctx context.Context, owners ...string) (func(), error) {
	unlock := s.locks.LockAll(owners...)
	if s.distLock == nil {
		return unlock, nil
	}

	sorted := append([]string(nil), owners...)
	sort.Strings(sorted)

	type heldLock struct{ owner, token string }
	var held []heldLock
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := s.distLock.ReleaseWalletLock(context.Background(), held[i].owner, held[i].token); err != nil {
				log.Printf("[wallet] failed to release lock for %s: %v", held[i].owner, err)
			}
		}
	}

	for i, owner := range sorted {
		if i > 0 && sorted[i-1] == owner {
			continue
		}
		lockCtx, cancel := context.WithTimeout(ctx, s.config.LockTTL)
		token, err := s.distLock.WaitWalletLock(lockCtx, owner, s.config.LockTTL)
		cancel()
		if err != nil {
			release()
			unlock()
			return nil, fmt.Errorf("acquire wallet lock for %s: %w", owner, err)
		}
		held = append(held, heldLock{owner: owner, token: token})
	}

	return func() {
		release()
		unlock()
	}, nil
}

func (s *WalletService) record(result string) {
	if s.metrics != nil {
		s.metrics.WalletTransfer(result)
	}
}
