package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	dErrors "libraflow/pkg/domainerrors"
)

// Store persists transactions. SetStatus and MarkReminded are
// compare-and-set and report whether the row moved.
type Store interface {
	Insert(ctx context.Context, tx *Transaction) error
	// FindOpen returns the Active or Overdue loan of userID on itemID.
	FindOpen(ctx context.Context, userID, itemID uuid.UUID) (*Transaction, error)
	CountOpen(ctx context.Context, userID uuid.UUID) (int, error)
	// Update overwrites status, return date and reminder stamp.
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByUser returns a user's transactions, most recent borrow first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
	// ListDueBy returns Active, unreminded rows due at or before t.
	ListDueBy(ctx context.Context, t time.Time) ([]*Transaction, error)
	// ListPastDue returns Active rows due before now.
	ListPastDue(ctx context.Context, now time.Time) ([]*Transaction, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to TxStatus) (bool, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

func openConflict(tx *Transaction) error {
	return dErrors.Newf(dErrors.CodeConflict, "user %s already has an open loan of %s", tx.UserID, tx.ItemID)
}

func notFound(id uuid.UUID) error {
	return dErrors.Newf(dErrors.CodeNotFound, "transaction %s not found", id)
}

// MemoryStore keeps transactions in process.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[uuid.UUID]Transaction)}
}

func (s *MemoryStore) Insert(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.Open() {
		for _, other := range s.txs {
			if other.Open() && other.UserID == tx.UserID && other.ItemID == tx.ItemID {
				return openConflict(tx)
			}
		}
	}
	s.txs[tx.ID] = *tx
	return nil
}

func (s *MemoryStore) FindOpen(_ context.Context, userID, itemID uuid.UUID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.txs {
		if tx.Open() && tx.UserID == userID && tx.ItemID == itemID {
			return &tx, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "no open loan of %s by %s", itemID, userID)
}

func (s *MemoryStore) CountOpen(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, tx := range s.txs {
		if tx.Open() && tx.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Update(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; !ok {
		return notFound(tx.ID)
	}
	s.txs[tx.ID] = *tx
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return notFound(id)
	}
	delete(s.txs, id)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*Transaction, error) {
	out := s.filter(func(tx *Transaction) bool { return tx.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].BorrowDate.After(out[j].BorrowDate) })
	return out, nil
}

func (s *MemoryStore) ListDueBy(_ context.Context, t time.Time) ([]*Transaction, error) {
	out := s.filter(func(tx *Transaction) bool {
		return tx.Status == TxActive && tx.ReminderSentAt == nil && !tx.DueDate.After(t)
	})
	sortByDue(out)
	return out, nil
}

func (s *MemoryStore) ListPastDue(_ context.Context, now time.Time) ([]*Transaction, error) {
	out := s.filter(func(tx *Transaction) bool {
		return tx.Status == TxActive && tx.DueDate.Before(now)
	})
	sortByDue(out)
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id uuid.UUID, from, to TxStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.Status != from {
		return false, nil
	}
	tx.Status = to
	s.txs[id] = tx
	return true, nil
}

func (s *MemoryStore) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.Status != TxActive || tx.ReminderSentAt != nil {
		return false, nil
	}
	tx.ReminderSentAt = &at
	s.txs[id] = tx
	return true, nil
}

func (s *MemoryStore) filter(keep func(*Transaction) bool) []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, tx := range s.txs {
		if keep(&tx) {
			out = append(out, &tx)
		}
	}
	return out
}

func sortByDue(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].DueDate.Before(txs[j].DueDate) })
}

const columns = `id, user_id, item_id, borrow_date, due_date, return_date, status, reminder_sent_at`

// PostgresStore relies on the partial unique index transactions_one_open
// for the one-open-loan-per-pair rule.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, tx *Transaction) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO transactions (`+columns+`)
		VALUES (:id, :user_id, :item_id, :borrow_date, :due_date, :return_date, :status, :reminder_sent_at)
	`, tx)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return openConflict(tx)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOpen(ctx context.Context, userID, itemID uuid.UUID) (*Transaction, error) {
	var tx Transaction
	err := s.db.GetContext(ctx, &tx, `SELECT `+columns+` FROM transactions
		WHERE user_id = $1 AND item_id = $2 AND status IN ('active', 'overdue')`, userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no open loan of %s by %s", itemID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("find open transaction: %w", err)
	}
	return &tx, nil
}

func (s *PostgresStore) CountOpen(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND status IN ('active', 'overdue')`, userID)
	if err != nil {
		return 0, fmt.Errorf("count open transactions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Update(ctx context.Context, tx *Transaction) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE transactions
		SET status = :status, return_date = :return_date, reminder_sent_at = :reminder_sent_at
		WHERE id = :id
	`, tx)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return openConflict(tx)
	}
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(tx.ID)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error) {
	return s.list(ctx, `SELECT `+columns+` FROM transactions
		WHERE user_id = $1 ORDER BY borrow_date DESC`, userID)
}

func (s *PostgresStore) ListDueBy(ctx context.Context, t time.Time) ([]*Transaction, error) {
	return s.list(ctx, `SELECT `+columns+` FROM transactions
		WHERE status = 'active' AND reminder_sent_at IS NULL AND due_date <= $1
		ORDER BY due_date`, t)
}

func (s *PostgresStore) ListPastDue(ctx context.Context, now time.Time) ([]*Transaction, error) {
	return s.list(ctx, `SELECT `+columns+` FROM transactions
		WHERE status = 'active' AND due_date < $1
		ORDER BY due_date`, now)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, from, to TxStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("set transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set transaction status: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET reminder_sent_at = $1
		WHERE id = $2 AND status = 'active' AND reminder_sent_at IS NULL`, at, id)
	if err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminded: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	var out []*Transaction
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}
