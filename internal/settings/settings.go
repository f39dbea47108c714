// Package settings stores the singleton auto-responder configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultWelcomeAr = "مرحبا بك في عيادة الأسنان. كيف يمكنني مساعدتك؟"
	DefaultWelcomeFr = "Bienvenue à la clinique dentaire. Comment puis-je vous aider?"
	DefaultThreshold = 0.7

	MinThreshold     = 0.1
	MaxThreshold     = 1.0
	minWelcomeLength = 3
)

var (
	// ErrInvalidThreshold is returned for thresholds outside [0.1, 1.0].
	ErrInvalidThreshold = errors.New("settings: match threshold must be between 0.1 and 1")

	// ErrInvalidWelcome is returned when a welcome text is too short.
	ErrInvalidWelcome = errors.New("settings: welcome messages must be at least 3 characters")
)

// Settings is the singleton configuration row.
type Settings struct {
	WelcomeMessageAr string    `json:"welcome_message_ar"`
	WelcomeMessageFr string    `json:"welcome_message_fr"`
	MatchThreshold   float64   `json:"match_threshold"`
	AutoReplyEnabled bool      `json:"auto_reply_enabled"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Defaults returns the settings used when none are stored.
func Defaults() Settings {
	return Settings{
		WelcomeMessageAr: DefaultWelcomeAr,
		WelcomeMessageFr: DefaultWelcomeFr,
		MatchThreshold:   DefaultThreshold,
		AutoReplyEnabled: true,
	}
}

// Validate checks the admin-editable fields.
func (s Settings) Validate() error {
	if s.MatchThreshold < MinThreshold || s.MatchThreshold > MaxThreshold {
		return ErrInvalidThreshold
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.WelcomeMessageAr)) < minWelcomeLength ||
		utf8.RuneCountInString(strings.TrimSpace(s.WelcomeMessageFr)) < minWelcomeLength {
		return ErrInvalidWelcome
	}
	return nil
}

// Store reads and writes the settings row.
type Store interface {
	// GetOrInit returns the stored settings, inserting Defaults on first use.
	GetOrInit(ctx context.Context) (Settings, error)
	// Update validates and replaces the settings.
	Update(ctx context.Context, s Settings) (Settings, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps settings in a single-row table.
type PostgresStore struct {
	pool querier
}

func NewPostgresStore(pool querier) *PostgresStore {
	if pool == nil {
		panic("settings: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetOrInit(ctx context.Context) (Settings, error) {
	d := Defaults()
	query := `
		INSERT INTO settings (id, welcome_message_ar, welcome_message_fr, match_threshold, auto_reply_enabled)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET id = settings.id
		RETURNING welcome_message_ar, welcome_message_fr, match_threshold, auto_reply_enabled, updated_at
	`
	var out Settings
	if err := s.pool.QueryRow(ctx, query, d.WelcomeMessageAr, d.WelcomeMessageFr, d.MatchThreshold, d.AutoReplyEnabled).Scan(
		&out.WelcomeMessageAr,
		&out.WelcomeMessageFr,
		&out.MatchThreshold,
		&out.AutoReplyEnabled,
		&out.UpdatedAt,
	); err != nil {
		return Settings{}, fmt.Errorf("settings: get or init: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, in Settings) (Settings, error) {
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	query := `
		INSERT INTO settings (id, welcome_message_ar, welcome_message_fr, match_threshold, auto_reply_enabled, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			welcome_message_ar = EXCLUDED.welcome_message_ar,
			welcome_message_fr = EXCLUDED.welcome_message_fr,
			match_threshold = EXCLUDED.match_threshold,
			auto_reply_enabled = EXCLUDED.auto_reply_enabled,
			updated_at = now()
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := s.pool.QueryRow(ctx, query,
		strings.TrimSpace(in.WelcomeMessageAr),
		strings.TrimSpace(in.WelcomeMessageFr),
		in.MatchThreshold,
		in.AutoReplyEnabled,
	).Scan(&updatedAt); err != nil {
		return Settings{}, fmt.Errorf("settings: update: %w", err)
	}
	in.WelcomeMessageAr = strings.TrimSpace(in.WelcomeMessageAr)
	in.WelcomeMessageFr = strings.TrimSpace(in.WelcomeMessageFr)
	in.UpdatedAt = updatedAt
	return in, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) GetOrInit(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		d := Defaults()
		d.UpdatedAt = time.Now().UTC()
		m.current = &d
	}
	return *m.current, nil
}

func (m *MemoryStore) Update(ctx context.Context, in Settings) (Settings, error) {
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	in.WelcomeMessageAr = strings.TrimSpace(in.WelcomeMessageAr)
	in.WelcomeMessageFr = strings.TrimSpace(in.WelcomeMessageFr)
	in.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	m.current = &in
	m.mu.Unlock()
	return in, nil
}
