package storage

import (
	"context"

	"liquidityDesk/internal/model"
)

// Sink records submitted transactions.
type Sink interface {
	PutTransaction(ctx context.Context, rec model.TransactionRecord) error
}

// Nop discards records.
type Nop struct{}

func (Nop) PutTransaction(context.Context, model.TransactionRecord) error { return nil }
