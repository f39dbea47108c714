// Package stats computes the admin dashboard figures from the conversation log.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

// Dashboard holds the headline numbers.
type Dashboard struct {
	TotalPatients      int `json:"total_patients"`
	ConversationsToday int `json:"conversations_today"`
	// ResponseRate is the percentage of scored turns that matched a script.
	ResponseRate int `json:"response_rate"`
	// MatchAccuracy is the mean similarity of matched turns, as a percentage.
	MatchAccuracy int `json:"match_accuracy"`
}

// Slice is one named share of a distribution, in percent.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// MonthlyCount is the number of turns in a month split by patient language.
type MonthlyCount struct {
	Name   string `json:"name"`
	Month  string `json:"month"`
	Arabic int    `json:"arabic"`
	French int    `json:"french"`
}

// PatientSummary is a row of the patients list.
type PatientSummary struct {
	ID               string            `json:"id"`
	Phone            string            `json:"phone"`
	Name             string            `json:"name,omitempty"`
	Language         patients.Language `json:"language,omitempty"`
	State            patients.State    `json:"state"`
	LastInteractedAt *time.Time        `json:"last_interacted_at,omitempty"`
	Conversations    int               `json:"conversations"`
}

// Service reads aggregates through database/sql.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	if db == nil {
		panic("stats: sql db required")
	}
	return &Service{db: db, now: time.Now}
}

// Dashboard counts patients and today's turns and rates the matcher. Rates
// only consider turns that went through script matching.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		out      Dashboard
		scored   int
		matched  int
		avgMatch sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE kind = 'match'),
			COUNT(*) FILTER (WHERE kind = 'match' AND matched),
			AVG(similarity) FILTER (WHERE kind = 'match' AND matched)
		FROM conversations`, startOfDay).
		Scan(&out.TotalPatients, &out.ConversationsToday, &scored, &matched, &avgMatch)
	if err != nil {
		return Dashboard{}, fmt.Errorf("stats: dashboard: %w", err)
	}
	out.ResponseRate = percent(matched, scored)
	if avgMatch.Valid {
		out.MatchAccuracy = int(math.Round(avgMatch.Float64 * 100))
	}
	return out, nil
}

// ResponseDistribution splits scored turns into matched, manually answered
// and unmatched. An unmatched turn counts as manual once staff appended a
// reply. Empty history yields an empty list.
func (s *Service) ResponseDistribution(ctx context.Context) ([]Slice, error) {
	var total, matched, manual int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE c.matched),
			COUNT(*) FILTER (WHERE NOT c.matched AND EXISTS (
				SELECT 1 FROM responses r WHERE r.conversation_id = c.id AND r.source = 'manual'))
		FROM conversations c
		WHERE c.kind = 'match'`).
		Scan(&total, &matched, &manual)
	if err != nil {
		return nil, fmt.Errorf("stats: distribution: %w", err)
	}
	if total == 0 {
		return []Slice{}, nil
	}
	unmatched := total - matched - manual
	return []Slice{
		{Name: "Matched", Value: percent(matched, total)},
		{Name: "Manual", Value: percent(manual, total)},
		{Name: "Unmatched", Value: percent(unmatched, total)},
	}, nil
}

// Monthly counts turns over the last six months, oldest month first.
func (s *Service) Monthly(ctx context.Context) ([]MonthlyCount, error) {
	since := s.now().AddDate(0, -6, 0)
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('month', c.created_at) AS month,
			COUNT(*) FILTER (WHERE p.language = 'ARABIC'),
			COUNT(*) FILTER (WHERE p.language IS DISTINCT FROM 'ARABIC')
		FROM conversations c
		JOIN patients p ON p.id = c.patient_id
		WHERE c.created_at >= $1
		GROUP BY month
		ORDER BY month ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("stats: monthly: %w", err)
	}
	defer rows.Close()

	out := []MonthlyCount{}
	for rows.Next() {
		var (
			month time.Time
			row   MonthlyCount
		)
		if err := rows.Scan(&month, &row.Arabic, &row.French); err != nil {
			return nil, fmt.Errorf("stats: scan monthly: %w", err)
		}
		row.Name = month.Month().String()[:3]
		row.Month = month.Format("2006-01")
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: monthly: %w", err)
	}
	return out, nil
}

// Patients lists patients, most recently updated first, with turn counts.
func (s *Service) Patients(ctx context.Context) ([]PatientSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.phone, p.name, p.language, p.state, p.last_interacted_at,
			(SELECT COUNT(*) FROM conversations c WHERE c.patient_id = p.id)
		FROM patients p
		ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("stats: patients: %w", err)
	}
	defer rows.Close()

	out := []PatientSummary{}
	for rows.Next() {
		var (
			p     PatientSummary
			name  sql.NullString
			lang  sql.NullString
			state string
			last  sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Phone, &name, &lang, &state, &last, &p.Conversations); err != nil {
			return nil, fmt.Errorf("stats: scan patient: %w", err)
		}
		p.Name = name.String
		if l, ok := patients.ParseLanguage(lang.String); ok {
			p.Language = l
		}
		p.State = patients.State(state)
		if last.Valid {
			t := last.Time
			p.LastInteractedAt = &t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: patients: %w", err)
	}
	return out, nil
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
