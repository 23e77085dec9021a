package db

import (
	"context"
	"fmt"
	"strings"
)

// Querier is the query surface shared by *Pool and Tx.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

// Queries bundles the catalog statements over either a pool or an open
// transaction.
type Queries struct {
	q Querier
}

func NewQueries(q Querier) *Queries {
	return &Queries{q: q}
}

// Queries returns the statement set bound to the pool (auto-commit).
func (p *Pool) Queries() *Queries {
	return &Queries{q: p}
}

// WithTx runs fn inside one transaction. Any error from fn rolls the
// transaction back and is returned unchanged.
func (p *Pool) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// int64Placeholders renders "$start, $start+1, ..." for IN lists.
func int64Placeholders(start, count int) string {
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		parts = append(parts, fmt.Sprintf("$%d", start+i))
	}
	return strings.Join(parts, ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
