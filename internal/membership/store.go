package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"libraflow/internal/policy"
	dErrors "libraflow/pkg/domainerrors"
)

type Store interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id uuid.UUID) (*Member, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role policy.Role) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	members map[uuid.UUID]Member
	emails  map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[uuid.UUID]Member),
		emails:  make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(m.Email)
	if _, ok := s.emails[key]; ok {
		return dErrors.Newf(dErrors.CodeConflict, "email %s already registered", m.Email)
	}
	s.members[m.ID] = *m
	s.emails[key] = m.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "member %s not found", id)
	}
	return &m, nil
}

func (s *MemoryStore) UpdateRole(_ context.Context, id uuid.UUID, role policy.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "member %s not found", id)
	}
	m.Role = role
	s.members[id] = m
	return nil
}

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *Member) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO members (id, name, email, role, created_at)
		VALUES (:id, :name, :email, :role, :created_at)
	`, m)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return dErrors.Newf(dErrors.CodeConflict, "email %s already registered", m.Email)
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	var m Member
	err := s.db.GetContext(ctx, &m, `SELECT id, name, email, role, created_at FROM members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "member %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) UpdateRole(ctx context.Context, id uuid.UUID, role policy.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE members SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "member %s not found", id)
	}
	return nil
}
