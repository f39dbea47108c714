package scripts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository stores scripts.
type Repository interface {
	ListActive(ctx context.Context) ([]*Script, error)
	List(ctx context.Context) ([]*Script, error)
	Get(ctx context.Context, id string) (*Script, error)
	Create(ctx context.Context, s *Script) error
	Update(ctx context.Context, s *Script) error
	Delete(ctx context.Context, id string) error
}

// SQLRepository stores scripts through database/sql with Postgres arrays.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("scripts: sql db required")
	}
	return &SQLRepository{db: db}
}

const scriptColumns = `id, question_ar, question_fr, response_ar, response_fr, keywords, category, active, embedding_ar, embedding_fr, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanScript(row scanner) (*Script, error) {
	var s Script
	if err := row.Scan(&s.ID, &s.QuestionAr, &s.QuestionFr, &s.ResponseAr, &s.ResponseFr,
		pq.Array(&s.Keywords), &s.Category, &s.Active,
		pq.Array(&s.EmbeddingAr), pq.Array(&s.EmbeddingFr),
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if s.Keywords == nil {
		s.Keywords = []string{}
	}
	return &s, nil
}

func (r *SQLRepository) ListActive(ctx context.Context) ([]*Script, error) {
	return r.list(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE active = true ORDER BY created_at ASC, id ASC`)
}

func (r *SQLRepository) List(ctx context.Context) ([]*Script, error) {
	return r.list(ctx, `SELECT `+scriptColumns+` FROM scripts ORDER BY created_at ASC, id ASC`)
}

func (r *SQLRepository) list(ctx context.Context, query string) ([]*Script, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scripts: list: %w", err)
	}
	defer rows.Close()

	out := []*Script{}
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("scripts: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*Script, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrScriptNotFound
	}
	s, err := scanScript(r.db.QueryRowContext(ctx, `SELECT `+scriptColumns+` FROM scripts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scripts: get: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) Create(ctx context.Context, s *Script) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scripts (id, question_ar, question_fr, response_ar, response_fr, keywords, category, active, embedding_ar, embedding_fr)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		s.ID, s.QuestionAr, s.QuestionFr, s.ResponseAr, s.ResponseFr,
		pq.Array(s.Keywords), s.Category, s.Active,
		pq.Array(s.EmbeddingAr), pq.Array(s.EmbeddingFr),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("scripts: insert: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, s *Script) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE scripts SET question_ar=$2, question_fr=$3, response_ar=$4, response_fr=$5,
		    keywords=$6, category=$7, active=$8, embedding_ar=$9, embedding_fr=$10, updated_at=now()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.QuestionAr, s.QuestionFr, s.ResponseAr, s.ResponseFr,
		pq.Array(s.Keywords), s.Category, s.Active,
		pq.Array(s.EmbeddingAr), pq.Array(s.EmbeddingFr),
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrScriptNotFound
	}
	if err != nil {
		return fmt.Errorf("scripts: update: %w", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrScriptNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("scripts: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrScriptNotFound
	}
	return nil
}

// MemoryRepository keeps scripts in process, ordered by creation.
type MemoryRepository struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	seq     map[string]int
	next    int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{scripts: make(map[string]*Script), seq: make(map[string]int)}
}

func (m *MemoryRepository) ListActive(ctx context.Context) ([]*Script, error) {
	all, _ := m.List(ctx)
	out := make([]*Script, 0, len(all))
	for _, s := range all {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Script, 0, len(m.scripts))
	for _, s := range m.scripts {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scripts[id]
	if !ok {
		return nil, ErrScriptNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryRepository) Create(ctx context.Context, s *Script) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.scripts[s.ID] = &c
	m.seq[s.ID] = m.next
	m.next++
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, s *Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.scripts[s.ID]
	if !ok {
		return ErrScriptNotFound
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	c := *s
	m.scripts[s.ID] = &c
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[id]; !ok {
		return ErrScriptNotFound
	}
	delete(m.scripts, id)
	delete(m.seq, id)
	return nil
}
