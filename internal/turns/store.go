package turns

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists turns and their responses.
type Store interface {
	// Create inserts t and its pending responses atomically, filling ids.
	Create(ctx context.Context, t *Turn) error
	// MarkSent records a successful dispatch of a response.
	MarkSent(ctx context.Context, responseID, providerMessageID string, sentAt time.Time) error
	// AppendResponse adds a response at the end of an existing turn.
	AppendResponse(ctx context.Context, turnID, content string, source Source) (*Response, error)
	// FindByMessageID returns the turn recorded for a provider message id.
	FindByMessageID(ctx context.Context, messageID string) (*Turn, error)
	// Latest returns the newest turn of a patient.
	Latest(ctx context.Context, patientID string) (*Turn, error)
	// ListByPatient returns turns oldest first, with responses.
	ListByPatient(ctx context.Context, patientID string) ([]Turn, error)
}

// PgxPool is the subset of pgxpool.Pool used by PostgresStore.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore stores turns in the conversations and responses tables.
type PostgresStore struct {
	pool PgxPool
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("turns: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, t *Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("turns: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO conversations (id, patient_id, message_id, content, language, matched, similarity, script_id, kind, state_from, state_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.PatientID, nullable(t.MessageID), t.Content, nullable(string(t.Language)),
		t.Matched, t.Similarity, nullable(t.ScriptID), string(t.Kind),
		nullable(string(t.StateFrom)), nullable(string(t.StateTo)), t.Timestamp,
	); err != nil {
		return fmt.Errorf("turns: insert conversation: %w", err)
	}

	for i := range t.Responses {
		r := &t.Responses[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.TurnID = t.ID
		r.Position = i
		if r.Source == "" {
			r.Source = SourceAuto
		}
		buttons, err := encodeButtons(r.Buttons)
		if err != nil {
			return fmt.Errorf("turns: encode buttons: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO responses (id, conversation_id, position, content, source, buttons)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, t.ID, r.Position, r.Content, string(r.Source), buttons,
		); err != nil {
			return fmt.Errorf("turns: insert response: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("turns: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, responseID, providerMessageID string, sentAt time.Time) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE responses SET sent_at = $2, provider_message_id = $3
		WHERE id = $1`, responseID, sentAt, nullable(providerMessageID))
	if err != nil {
		return fmt.Errorf("turns: mark sent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTurnNotFound
	}
	return nil
}

func (s *PostgresStore) AppendResponse(ctx context.Context, turnID, content string, source Source) (*Response, error) {
	r := &Response{ID: uuid.NewString(), TurnID: turnID, Content: content, Source: source}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO responses (id, conversation_id, position, content, source)
		SELECT $1, c.id, COALESCE((SELECT MAX(position) + 1 FROM responses WHERE conversation_id = c.id), 0), $3, $4
		FROM conversations c WHERE c.id = $2
		RETURNING position`,
		r.ID, turnID, content, string(source),
	).Scan(&r.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTurnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("turns: append response: %w", err)
	}
	return r, nil
}

const turnColumns = `id, patient_id, message_id, content, language, matched, similarity, script_id, kind, state_from, state_to, created_at`

func (s *PostgresStore) FindByMessageID(ctx context.Context, messageID string) (*Turn, error) {
	if messageID == "" {
		return nil, ErrTurnNotFound
	}
	return s.one(ctx, "find by message id", `
		SELECT `+turnColumns+` FROM conversations
		WHERE message_id = $1`, messageID)
}

func (s *PostgresStore) Latest(ctx context.Context, patientID string) (*Turn, error) {
	return s.one(ctx, "latest", `
		SELECT `+turnColumns+` FROM conversations
		WHERE patient_id = $1 ORDER BY created_at DESC, seq DESC LIMIT 1`, patientID)
}

func (s *PostgresStore) one(ctx context.Context, op, query string, arg any) (*Turn, error) {
	t, err := scanTurn(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTurnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("turns: %s: %w", op, err)
	}
	responses, err := s.responsesFor(ctx, []string{t.ID})
	if err != nil {
		return nil, err
	}
	if rs, ok := responses[t.ID]; ok {
		t.Responses = rs
	}
	return t, nil
}

func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+turnColumns+` FROM conversations
		WHERE patient_id = $1 ORDER BY created_at ASC, seq ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("turns: list: %w", err)
	}
	defer rows.Close()

	out := []Turn{}
	var ids []string
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("turns: scan: %w", err)
		}
		out = append(out, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turns: list: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}
	responses, err := s.responsesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if rs, ok := responses[out[i].ID]; ok {
			out[i].Responses = rs
		}
	}
	return out, nil
}

func (s *PostgresStore) responsesFor(ctx context.Context, turnIDs []string) (map[string][]Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, position, content, source, buttons, sent_at, provider_message_id
		FROM responses WHERE conversation_id = ANY($1) ORDER BY conversation_id, position ASC`, turnIDs)
	if err != nil {
		return nil, fmt.Errorf("turns: list responses: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Response, len(turnIDs))
	for rows.Next() {
		var (
			r          Response
			source     string
			buttons    []byte
			providerID *string
		)
		if err := rows.Scan(&r.ID, &r.TurnID, &r.Position, &r.Content, &source, &buttons, &r.SentAt, &providerID); err != nil {
			return nil, fmt.Errorf("turns: scan response: %w", err)
		}
		decoded, err := decodeButtons(buttons)
		if err != nil {
			return nil, fmt.Errorf("turns: decode buttons for %s: %w", r.ID, err)
		}
		r.Source = Source(source)
		r.Buttons = decoded
		r.ProviderMessageID = deref(providerID)
		out[r.TurnID] = append(out[r.TurnID], r)
	}
	return out, rows.Err()
}

func scanTurn(row pgx.Row) (*Turn, error) {
	var (
		t         Turn
		messageID *string
		lang      *string
		scriptID  *string
		kind      string
		stateFrom *string
		stateTo   *string
	)
	if err := row.Scan(&t.ID, &t.PatientID, &messageID, &t.Content, &lang, &t.Matched, &t.Similarity, &scriptID, &kind, &stateFrom, &stateTo, &t.Timestamp); err != nil {
		return nil, err
	}
	t.StateFrom = patientsState(stateFrom)
	t.StateTo = patientsState(stateTo)
	t.MessageID = deref(messageID)
	t.Language = patientsLanguage(deref(lang))
	t.ScriptID = deref(scriptID)
	t.Kind = Kind(kind)
	t.Responses = []Response{}
	return &t, nil
}

// MemoryStore keeps turns in process.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []*Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(ctx context.Context, t *Turn) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	for i := range t.Responses {
		r := &t.Responses[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.TurnID = t.ID
		r.Position = i
		if r.Source == "" {
			r.Source = SourceAuto
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, cloneTurn(t))
	return nil
}

func (m *MemoryStore) MarkSent(ctx context.Context, responseID, providerMessageID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.turns {
		for i := range t.Responses {
			if t.Responses[i].ID == responseID {
				at := sentAt
				t.Responses[i].SentAt = &at
				t.Responses[i].ProviderMessageID = providerMessageID
				return nil
			}
		}
	}
	return ErrTurnNotFound
}

func (m *MemoryStore) AppendResponse(ctx context.Context, turnID, content string, source Source) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.turns {
		if t.ID != turnID {
			continue
		}
		r := Response{ID: uuid.NewString(), TurnID: turnID, Position: len(t.Responses), Content: content, Source: source}
		t.Responses = append(t.Responses, r)
		return &r, nil
	}
	return nil, ErrTurnNotFound
}

func (m *MemoryStore) FindByMessageID(ctx context.Context, messageID string) (*Turn, error) {
	if messageID == "" {
		return nil, ErrTurnNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.turns {
		if t.MessageID == messageID {
			return cloneTurn(t), nil
		}
	}
	return nil, ErrTurnNotFound
}

func (m *MemoryStore) Latest(ctx context.Context, patientID string) (*Turn, error) {
	list, _ := m.ListByPatient(ctx, patientID)
	if len(list) == 0 {
		return nil, ErrTurnNotFound
	}
	return &list[len(list)-1], nil
}

func (m *MemoryStore) ListByPatient(ctx context.Context, patientID string) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Turn{}
	for _, t := range m.turns {
		if t.PatientID == patientID {
			out = append(out, *cloneTurn(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// All returns every stored turn in insertion order.
func (m *MemoryStore) All() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Turn, 0, len(m.turns))
	for _, t := range m.turns {
		out = append(out, *cloneTurn(t))
	}
	return out
}

func cloneTurn(t *Turn) *Turn {
	c := *t
	c.Responses = make([]Response, len(t.Responses))
	copy(c.Responses, t.Responses)
	return &c
}
