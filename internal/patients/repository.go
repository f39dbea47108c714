package patients

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines storage for patients.
type Repository interface {
	// FindByPhone returns ErrPatientNotFound for unknown numbers.
	FindByPhone(ctx context.Context, phone string) (*Patient, error)
	// Create inserts a WELCOME patient or returns the existing row for the
	// phone. created is true only when a new row was written.
	Create(ctx context.Context, phone, name string) (p *Patient, created bool, err error)
	// Update persists p if its Version still matches the stored row and
	// bumps p.Version. Returns ErrStaleState otherwise.
	Update(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
}

// InMemoryRepository keeps patients in a map. Used in development and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	byPhone map[string]*Patient
	now     func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byPhone: make(map[string]*Patient),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPhone[phone]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p.Clone(), nil
}

func (r *InMemoryRepository) Create(ctx context.Context, phone, name string) (*Patient, bool, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, false, ErrInvalidPhone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byPhone[phone]; ok {
		if existing.Name == "" && name != "" {
			existing.Name = name
		}
		return existing.Clone(), false, nil
	}
	now := r.now()
	p := &Patient{
		ID:        uuid.New().String(),
		Phone:     phone,
		Name:      name,
		State:     StateWelcome,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	r.byPhone[phone] = p
	return p.Clone(), true, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byPhone[p.Phone]
	if !ok || stored.ID != p.ID {
		return ErrPatientNotFound
	}
	if stored.Version != p.Version {
		return ErrStaleState
	}
	next := p.Clone()
	next.Version++
	next.UpdatedAt = r.now()
	r.byPhone[p.Phone] = next
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byPhone {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, ErrPatientNotFound
}

// Count returns the number of stored patients.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPhone)
}
