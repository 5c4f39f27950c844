package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a single PostgreSQL table shaped
// like the logical record layout: (pk, sk, version, data). Apply runs the
// whole batch in one transaction; conditional writes are expressed as
// statements whose affected-row count reveals a failed precondition.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Init creates the ledger table if it does not exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS ledger_items (
			pk      TEXT   NOT NULL,
			sk      TEXT   NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			data    JSONB  NOT NULL,
			PRIMARY KEY (pk, sk)
		)`)
	if err != nil {
		return fmt.Errorf("init ledger table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (Item, error) {
	item := Item{Key: key}
	err := s.pool.QueryRow(ctx,
		`SELECT version, data FROM ledger_items WHERE pk = $1 AND sk = $2`,
		key.PK, key.SK).Scan(&item.Version, &item.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("get %s/%s: %w", key.PK, key.SK, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get %s/%s: %w", key.PK, key.SK, err)
	}
	return item, nil
}

func (s *PostgresStore) Query(ctx context.Context, pk string, opts QueryOptions) ([]Item, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT sk, version, data FROM ledger_items WHERE pk = $1`)
	args = append(args, pk)

	if opts.SKPrefix != "" {
		args = append(args, opts.SKPrefix+"%")
		fmt.Fprintf(&sb, ` AND sk LIKE $%d`, len(args))
	}
	if opts.StartAfter != "" {
		args = append(args, opts.StartAfter)
		if opts.Descending {
			fmt.Fprintf(&sb, ` AND sk < $%d`, len(args))
		} else {
			fmt.Fprintf(&sb, ` AND sk > $%d`, len(args))
		}
	}
	for name, value := range opts.Filter {
		args = append(args, name, value)
		fmt.Fprintf(&sb, ` AND data->>$%d = $%d`, len(args)-1, len(args))
	}

	if opts.Descending {
		sb.WriteString(` ORDER BY sk DESC`)
	} else {
		sb.WriteString(` ORDER BY sk ASC`)
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", pk, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item := Item{Key: Key{PK: pk}}
		if err := rows.Scan(&item.SK, &item.Version, &item.Data); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Apply(ctx context.Context, ops ...Op) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, tx pgx.Tx, op Op) error {
	key := opKey(op)

	var (
		tag pgconn.CommandTag
		err error
	)

	switch {
	case op.Put != nil && op.Cond.Kind == CondNotExists:
		tag, err = tx.Exec(ctx,
			`INSERT INTO ledger_items (pk, sk, version, data) VALUES ($1, $2, 1, $3)
			 ON CONFLICT (pk, sk) DO NOTHING`,
			key.PK, key.SK, op.Put.Data)

	case op.Put != nil && op.Cond.Kind == CondVersion:
		tag, err = tx.Exec(ctx,
			`UPDATE ledger_items SET data = $3, version = version + 1
			 WHERE pk = $1 AND sk = $2 AND version = $4`,
			key.PK, key.SK, op.Put.Data, op.Cond.Version)

	case op.Put != nil:
		tag, err = tx.Exec(ctx,
			`INSERT INTO ledger_items (pk, sk, version, data) VALUES ($1, $2, 1, $3)
			 ON CONFLICT (pk, sk) DO UPDATE
			 SET data = EXCLUDED.data, version = ledger_items.version + 1`,
			key.PK, key.SK, op.Put.Data)

	case op.Delete != nil && op.Cond.Kind == CondVersion:
		tag, err = tx.Exec(ctx,
			`DELETE FROM ledger_items WHERE pk = $1 AND sk = $2 AND version = $3`,
			key.PK, key.SK, op.Cond.Version)

	case op.Delete != nil:
		// Unconditional delete never fails a precondition.
		_, err = tx.Exec(ctx,
			`DELETE FROM ledger_items WHERE pk = $1 AND sk = $2`, key.PK, key.SK)
		return err

	default:
		return fmt.Errorf("apply %s/%s: empty op", key.PK, key.SK)
	}

	if err != nil {
		return fmt.Errorf("apply %s/%s: %w", key.PK, key.SK, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("apply %s/%s: %w", key.PK, key.SK, &ConditionError{Key: key, Cond: op.Cond})
	}
	return nil
}
