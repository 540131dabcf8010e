package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor backed by db
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Messages() MessageRepository { return NewMessageRepository(t.tx) }
func (t *sqlTx) Commands() CommandRepository { return NewCommandRepository(t.tx) }

// WithinTx commits when fn returns nil and rolls back otherwise
func (s *sqlTransactor) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
