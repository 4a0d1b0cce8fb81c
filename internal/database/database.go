package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx stores a transaction handle in the context so repositories and the
// ledger participate in the caller's transaction instead of opening their own.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// FromContext returns the transaction stored in ctx, or fallback when the
// caller did not open one.
func FromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

// TxManager runs a function inside a single database transaction. A returned
// error rolls the whole transaction back, leaving no partial state.
type TxManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
