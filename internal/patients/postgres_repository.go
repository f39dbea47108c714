package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in Postgres.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const patientColumns = `id, phone, name, language, state, last_service_id, last_interacted_at, created_at, updated_at, version`

func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE phone = $1`
	p, err := scanPatient(r.pool.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select by phone: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPatientNotFound
	}
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	p, err := scanPatient(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select by id: %w", err)
	}
	return p, nil
}

// Create upserts on phone. The display name is only filled when missing.
func (r *PostgresRepository) Create(ctx context.Context, phone, name string) (*Patient, bool, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, false, ErrInvalidPhone
	}
	query := `
		INSERT INTO patients (id, phone, name, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE
			SET name = COALESCE(patients.name, EXCLUDED.name)
		RETURNING ` + patientColumns + `, (xmax = 0) AS inserted
	`
	var (
		p           Patient
		displayName *string
		lang        *string
		state       string
		service     *string
		inserted    bool
	)
	err := r.pool.QueryRow(ctx, query, uuid.New().String(), phone, nullable(name), string(StateWelcome)).Scan(
		&p.ID,
		&p.Phone,
		&displayName,
		&lang,
		&state,
		&service,
		&p.LastInteractedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("patients: upsert failed: %w", err)
	}
	p.Name = deref(displayName)
	p.Language = Language(deref(lang))
	p.State = State(state)
	p.LastServiceID = deref(service)
	return &p, inserted, nil
}

// Update writes the mutable fields guarded by the version counter.
func (r *PostgresRepository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients
		SET name = $3,
			language = $4,
			state = $5,
			last_service_id = $6,
			last_interacted_at = $7,
			updated_at = now(),
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`
	var (
		version   int
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Version,
		nullable(p.Name),
		nullable(string(p.Language)),
		string(p.State),
		nullable(p.LastServiceID),
		p.LastInteractedAt,
	).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleState
		}
		return fmt.Errorf("patients: update failed: %w", err)
	}
	p.Version = version
	p.UpdatedAt = updatedAt
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p       Patient
		name    *string
		lang    *string
		state   string
		service *string
	)
	if err := row.Scan(
		&p.ID,
		&p.Phone,
		&name,
		&lang,
		&state,
		&service,
		&p.LastInteractedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	); err != nil {
		return nil, err
	}
	p.Name = deref(name)
	p.Language = Language(deref(lang))
	p.State = State(state)
	p.LastServiceID = deref(service)
	return &p, nil
}
