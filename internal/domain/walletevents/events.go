// Package walletevents defines the domain events produced by the wallet
// use cases and carried through the outbox.
//
// Pattern: Domain Events
// - Events are immutable facts raised by entities when state changes.
// - The outbox store persists them as opaque JSON payloads; this package
//   owns only the shapes and the stable EventType strings bound in
//   internal/bindings.
package walletevents

import (
	"time"

	"github.com/google/uuid"
)

// Event type names, stable across releases — these are the values stored
// in OutboxRecord.EventType and bound to broker destinations.
const (
	TypeWalletCreated       = "walletCreatedEventProducer"
	TypeFundsAdded          = "fundsAddedEventProducer"
	TypeFundsWithdrawn      = "fundsWithdrawnEventProducer"
	TypeFundsTransferred    = "fundsTransferredEventProducer"
)

// WalletCreated is raised when a new wallet is created for a user.
type WalletCreated struct {
	EventID      uuid.UUID `json:"eventId"`
	OccurredOn   time.Time `json:"occurredOn"`
	WalletID     uuid.UUID `json:"walletId"`
	OwnerID      uuid.UUID `json:"ownerId"`
	Currency     string    `json:"currency"`
}

// FundsAdded is raised when a credit is applied to a wallet.
type FundsAdded struct {
	EventID       uuid.UUID `json:"eventId"`
	OccurredOn    time.Time `json:"occurredOn"`
	WalletID      uuid.UUID `json:"walletId"`
	TransactionID uuid.UUID `json:"transactionId"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
}

// FundsWithdrawn is raised when a debit is applied to a wallet.
type FundsWithdrawn struct {
	EventID       uuid.UUID `json:"eventId"`
	OccurredOn    time.Time `json:"occurredOn"`
	WalletID      uuid.UUID `json:"walletId"`
	TransactionID uuid.UUID `json:"transactionId"`
	AmountMinor   int64     `json:"amountMinor"`
	Currency      string    `json:"currency"`
}

// FundsTransferred is raised when a transfer between two wallets settles.
type FundsTransferred struct {
	EventID         uuid.UUID `json:"eventId"`
	OccurredOn      time.Time `json:"occurredOn"`
	SourceWalletID  uuid.UUID `json:"sourceWalletId"`
	TargetWalletID  uuid.UUID `json:"targetWalletId"`
	TransactionID   uuid.UUID `json:"transactionId"`
	AmountMinor     int64     `json:"amountMinor"`
	Currency        string    `json:"currency"`
}

// NewWalletCreated builds a WalletCreated event with a fresh event id.
func NewWalletCreated(walletID, ownerID uuid.UUID, currency string) WalletCreated {
	return WalletCreated{
		EventID:    uuid.New(),
		OccurredOn: time.Now().UTC(),
		WalletID:   walletID,
		OwnerID:    ownerID,
		Currency:   currency,
	}
}

// NewFundsAdded builds a FundsAdded event with a fresh event id.
func NewFundsAdded(walletID, transactionID uuid.UUID, amountMinor int64, currency string) FundsAdded {
	return FundsAdded{
		EventID:       uuid.New(),
		OccurredOn:    time.Now().UTC(),
		WalletID:      walletID,
		TransactionID: transactionID,
		AmountMinor:   amountMinor,
		Currency:      currency,
	}
}

// NewFundsWithdrawn builds a FundsWithdrawn event with a fresh event id.
func NewFundsWithdrawn(walletID, transactionID uuid.UUID, amountMinor int64, currency string) FundsWithdrawn {
	return FundsWithdrawn{
		EventID:       uuid.New(),
		OccurredOn:    time.Now().UTC(),
		WalletID:      walletID,
		TransactionID: transactionID,
		AmountMinor:   amountMinor,
		Currency:      currency,
	}
}

// NewFundsTransferred builds a FundsTransferred event with a fresh event id.
func NewFundsTransferred(sourceWalletID, targetWalletID, transactionID uuid.UUID, amountMinor int64, currency string) FundsTransferred {
	return FundsTransferred{
		EventID:        uuid.New(),
		OccurredOn:     time.Now().UTC(),
		SourceWalletID: sourceWalletID,
		TargetWalletID: targetWalletID,
		TransactionID:  transactionID,
		AmountMinor:    amountMinor,
		Currency:       currency,
	}
}
