package domain

import "time"

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	TransactionTypeEarn  TransactionType = "EARN"
	TransactionTypeSpend TransactionType = "SPEND"
)

// Wallet holds a token balance for one owner. Balance never goes negative.
type Wallet struct {
	OwnerID   string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletTransaction is one entry of a wallet's history.
type WalletTransaction struct {
	ID              string
	OwnerID         string
	Type            TransactionType
	Amount          int64
	Description     string
	RelatedEntityID string
	Timestamp       time.Time
}
