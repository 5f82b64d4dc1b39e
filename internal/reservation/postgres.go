package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	dErrors "libraflow/pkg/domainerrors"
)

const columns = `id, seq, user_id, item_id, reservation_date, expiry_date, status`

// PostgresStore relies on the partial unique index reservations_one_active
// for the one-active-per-pair rule.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, r *Reservation) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO reservations (id, user_id, item_id, reservation_date, expiry_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, r.ID, r.UserID, r.ItemID, r.ReservationDate, r.ExpiryDate, r.Status).Scan(&r.Seq)
	if isUniqueViolation(err) {
		return dErrors.Newf(dErrors.CodeConflict, "user %s already holds an active reservation on %s", r.UserID, r.ItemID)
	}
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActive(ctx context.Context, itemID, userID uuid.UUID) (*Reservation, error) {
	var r Reservation
	err := s.db.GetContext(ctx, &r, `SELECT `+columns+` FROM reservations
		WHERE item_id = $1 AND user_id = $2 AND status = 'active'`, itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no active reservation by %s on %s", userID, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, itemID uuid.UUID) ([]*Reservation, error) {
	return s.list(ctx, `SELECT `+columns+` FROM reservations
		WHERE item_id = $1 AND status = 'active'
		ORDER BY reservation_date, seq`, itemID)
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]*Reservation, error) {
	return s.list(ctx, `SELECT `+columns+` FROM reservations
		WHERE status = 'active' AND expiry_date < $1
		ORDER BY reservation_date, seq`, now)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Reservation, error) {
	return s.list(ctx, `SELECT `+columns+` FROM reservations
		WHERE user_id = $1
		ORDER BY reservation_date, seq`, userID)
}

func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE reservations SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if isUniqueViolation(err) {
		return false, dErrors.Newf(dErrors.CodeConflict, "reservation %s cannot become %s", id, to)
	}
	if err != nil {
		return false, fmt.Errorf("transition reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition reservation: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Reservation, error) {
	var out []*Reservation
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
