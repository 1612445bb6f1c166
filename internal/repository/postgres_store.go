package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresOptions tunes transactional behavior.
type PostgresOptions struct {
	// LockTimeout bounds how long a statement waits for a row lock.
	LockTimeout time.Duration
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore instantiates the store.
func NewPostgresStore(pool *pgxpool.Pool, opts PostgresOptions) *PostgresStore {
	return &PostgresStore{pool: pool, lockTimeout: opts.LockTimeout}
}

func (s *PostgresStore) Tickets() TicketRepository         { return NewTicketRepository(s.pool) }
func (s *PostgresStore) Technicians() TechnicianRepository { return NewTechnicianRepository(s.pool) }
func (s *PostgresStore) Assignments() AssignmentRepository { return NewAssignmentRepository(s.pool) }
func (s *PostgresStore) Audit() AuditRepository            { return NewAuditRepository(s.pool) }

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

// WithTx runs fn inside a READ COMMITTED transaction. Row locks taken with
// GetForUpdate/GetForShare provide the mutual exclusion.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return translateError(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		// rollback after commit is a no-op; a cancelled ctx must not skip it
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if s.lockTimeout > 0 {
		setting := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, setting); err != nil {
			return translateError(fmt.Errorf("set lock_timeout: %w", err))
		}
	}

	if err := fn(&postgresTx{db: tx}); err != nil {
		return translateError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translateError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type postgresTx struct {
	db DBTX
}

func (t *postgresTx) Tickets() TicketRepository         { return NewTicketRepository(t.db) }
func (t *postgresTx) Technicians() TechnicianRepository { return NewTechnicianRepository(t.db) }
func (t *postgresTx) Assignments() AssignmentRepository { return NewAssignmentRepository(t.db) }
func (t *postgresTx) Audit() AuditRepository            { return NewAuditRepository(t.db) }

// Postgres error codes the store classifies.
const (
	pgForeignKeyViolation  = "23503"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}
