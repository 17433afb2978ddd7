package service

import "errors"

var (
	// ErrInvalidOperatorID is returned when operator ID is empty.
	ErrInvalidOperatorID = errors.New("invalid operator id")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidStop is returned when an origin or destination is empty.
	ErrInvalidStop = errors.New("invalid stop")

	// ErrInvalidPassengerID is returned when passenger ID is empty.
	ErrInvalidPassengerID = errors.New("invalid passenger id")

	// ErrInvalidPassengerCount is returned when passenger count is negative or above the per-ticket limit.
	ErrInvalidPassengerCount = errors.New("invalid passenger count")

	// ErrInvalidPaymentMethod is returned when payment method is unknown.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidTicketID is returned when ticket ID is empty.
	ErrInvalidTicketID = errors.New("invalid ticket id")

	// ErrInvalidTicketTransition is returned when a status change skips or reverses the lifecycle.
	ErrInvalidTicketTransition = errors.New("invalid ticket status transition")

	// ErrInvalidOwnerID is returned when wallet owner ID is empty.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidAmount is returned when a token amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit exceeds the wallet balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSelfTransfer is returned when sender and receiver are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to the same wallet")

	// ErrInvalidPassID is returned when pass ID is empty.
	ErrInvalidPassID = errors.New("invalid pass id")

	// ErrInvalidPassType is returned when the pass type is unknown.
	ErrInvalidPassType = errors.New("invalid pass type")

	// ErrInvalidValidity is returned when pass validity is not positive.
	ErrInvalidValidity = errors.New("invalid pass validity")

	// ErrEmptyPayload is returned when a ledger block has no payload.
	ErrEmptyPayload = errors.New("empty ledger payload")

	// ErrInvalidPayload is returned when a ledger payload is not valid JSON.
	ErrInvalidPayload = errors.New("invalid ledger payload")

	// errEmptyGeometry is used when the provider answers with zero vertices.
	errEmptyGeometry = errors.New("route geometry has no vertices")

	// ErrChainIntegrity is returned when a stored block no longer matches its
	// hash or its predecessor.
	ErrChainIntegrity = errors.New("ledger chain integrity violation")
)
