package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// LedgerRepository реализует Ledger поверх *sqlx.DB или *sqlx.Tx.
type LedgerRepository struct {
	q sqlx.ExtContext
}

// PostgresStore - Store на PostgreSQL.
type PostgresStore struct {
	*LedgerRepository
	db *sqlx.DB
}

// NewPostgresStore создаёт хранилище расчётов.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		LedgerRepository: &LedgerRepository{q: db},
		db:               db,
	}
}

// WithinTx выполняет fn в одной транзакции.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Ledger) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&LedgerRepository{q: tx})
	})
}

var _ Store = (*PostgresStore)(nil)
