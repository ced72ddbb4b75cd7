package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sharetube/party/internal/repository/room"
)

//go:embed schema.sql
var schema string

const activeCodeIndex = "rooms_active_code_idx"

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ room.Store = (*repo)(nil)

type repo struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewRepo(db *pgxpool.Pool, logger *slog.Logger) *repo {
	return &repo{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the tables and indexes when they do not exist yet.
func (r repo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

func (r repo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapPgError(fmt.Errorf("failed to begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("failed to commit tx: %w", err))
	}

	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// unique violation
		case "23505":
			if pgErr.ConstraintName == activeCodeIndex {
				return room.ErrCodeTaken
			}
			if pgErr.ConstraintName == "rooms_pkey" {
				return room.ErrRoomExists
			}
		// serialization failure, deadlock detected
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", room.ErrConflict, pgErr.Message)
		}
	}

	return err
}
