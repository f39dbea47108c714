package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
	"github.com/wolfman30/clinic-autoresponder/internal/locking"
	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/internal/settings"
	"github.com/wolfman30/clinic-autoresponder/internal/stats"
	"github.com/wolfman30/clinic-autoresponder/internal/turns"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

type stubStats struct {
	err error
}

func (s stubStats) Dashboard(context.Context) (stats.Dashboard, error) {
	return stats.Dashboard{TotalPatients: 3, ResponseRate: 50}, s.err
}

func (s stubStats) ResponseDistribution(context.Context) ([]stats.Slice, error) {
	return []stats.Slice{{Name: "Matched", Value: 100}}, s.err
}

func (s stubStats) Monthly(context.Context) ([]stats.MonthlyCount, error) {
	return []stats.MonthlyCount{{Name: "May", Month: "2025-05", French: 2}}, s.err
}

func (s stubStats) Patients(context.Context) ([]stats.PatientSummary, error) {
	return []stats.PatientSummary{{ID: "p1", Phone: "+33600000000", Conversations: 2}}, s.err
}

type stubDispatcher struct {
	sent []conversation.Reply
	err  error
}

func (d *stubDispatcher) Send(_ context.Context, _ string, reply conversation.Reply) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.sent = append(d.sent, reply)
	return "wamid.manual", nil
}

type adminFixture struct {
	router     chi.Router
	patients   *patients.InMemoryRepository
	turns      *turns.MemoryStore
	dispatcher *stubDispatcher
	locker     *locking.LocalLocker
}

func newAdminFixture(t *testing.T, st statsReader) *adminFixture {
	t.Helper()
	f := &adminFixture{
		patients:   patients.NewInMemoryRepository(),
		turns:      turns.NewMemoryStore(),
		dispatcher: &stubDispatcher{},
		locker:     locking.NewLocalLocker(),
	}
	h := NewAdminHandler(AdminConfig{
		Settings:   settings.NewMemoryStore(),
		Scripts:    scripts.NewService(scripts.NewMemoryRepository(), nil, logging.Default()),
		Patients:   f.patients,
		Turns:      f.turns,
		Stats:      st,
		Dispatcher: f.dispatcher,
		Locker:     f.locker,
		Logger:     logging.Default(),
	})
	r := chi.NewRouter()
	r.Route("/admin", h.Routes)
	f.router = r
	return f
}

func (f *adminFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body == "" {
		buf = &bytes.Buffer{}
	} else {
		buf = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, buf))
	return rec
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	f := newAdminFixture(t, stubStats{})

	rec := f.do(t, http.MethodGet, "/admin/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got settings.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, settings.DefaultThreshold, got.MatchThreshold)

	rec = f.do(t, http.MethodPut, "/admin/settings",
		`{"welcome_message_ar":"أهلا وسهلا","welcome_message_fr":"Bonjour","match_threshold":0.5,"auto_reply_enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 0.5, got.MatchThreshold)
	assert.False(t, got.AutoReplyEnabled)
}

func TestAdminSettingsValidation(t *testing.T) {
	f := newAdminFixture(t, stubStats{})

	rec := f.do(t, http.MethodPut, "/admin/settings",
		`{"welcome_message_ar":"أهلا وسهلا","welcome_message_fr":"Bonjour","match_threshold":1.5,"auto_reply_enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/admin/settings", `{"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminScriptsCRUD(t *testing.T) {
	f := newAdminFixture(t, stubStats{})

	rec := f.do(t, http.MethodPost, "/admin/scripts",
		`{"question_ar":"ما هي ساعات العمل؟","question_fr":"Quels sont vos horaires?","response_ar":"من 9 إلى 7","response_fr":"De 9h à 19h","keywords":["horaires"," Horaires ",""],"category":"hours"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created scripts.Script
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Active)
	assert.Equal(t, []string{"horaires"}, created.Keywords)

	rec = f.do(t, http.MethodGet, "/admin/scripts/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/admin/scripts/"+created.ID,
		`{"question_ar":"ما هي ساعات العمل؟","question_fr":"Horaires?","response_ar":"من 9 إلى 7","response_fr":"De 9h à 18h","active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated scripts.Script
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.Active)
	assert.Equal(t, "De 9h à 18h", updated.ResponseFr)

	rec = f.do(t, http.MethodGet, "/admin/scripts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []scripts.Script
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodDelete, "/admin/scripts/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/admin/scripts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCreateScriptRequiresBothLanguages(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	rec := f.do(t, http.MethodPost, "/admin/scripts", `{"question_fr":"Horaires?","response_fr":"9h"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGetPatient(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	p, _, err := f.patients.Create(context.Background(), "+212600000001", "Salma")
	require.NoError(t, err)
	require.NoError(t, f.turns.Create(context.Background(), &turns.Turn{
		PatientID: p.ID,
		Content:   "Bonjour",
		Kind:      turns.KindWelcome,
		Responses: []turns.Response{{Content: "Bienvenue"}},
	}))

	rec := f.do(t, http.MethodGet, "/admin/patients/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Phone         string       `json:"phone"`
		Conversations []turns.Turn `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "+212600000001", body.Phone)
	require.Len(t, body.Conversations, 1)
	assert.Equal(t, "Bienvenue", body.Conversations[0].Responses[0].Content)

	rec = f.do(t, http.MethodGet, "/admin/patients/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminManualResponse(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	ctx := context.Background()
	p, _, err := f.patients.Create(ctx, "+33600000002", "")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/admin/patients/"+p.ID+"/responses", `{"content":"Bonjour"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	turn := &turns.Turn{PatientID: p.ID, Content: "Prix?", Kind: turns.KindMatch, Responses: []turns.Response{{Content: "Fallback"}}}
	require.NoError(t, f.turns.Create(ctx, turn))

	rec = f.do(t, http.MethodPost, "/admin/patients/"+p.ID+"/responses", `{"content":"  Le détartrage coûte 300 MAD. "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, "Le détartrage coûte 300 MAD.", f.dispatcher.sent[0].Text)

	latest, err := f.turns.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest.Responses, 2)
	manual := latest.Responses[1]
	assert.Equal(t, turns.SourceManual, manual.Source)
	assert.Equal(t, 1, manual.Position)
	assert.True(t, manual.Sent())
	assert.Equal(t, "wamid.manual", manual.ProviderMessageID)
}

func TestAdminManualResponseDispatchFailure(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	ctx := context.Background()
	p, _, err := f.patients.Create(ctx, "+33600000003", "")
	require.NoError(t, err)
	require.NoError(t, f.turns.Create(ctx, &turns.Turn{PatientID: p.ID, Content: "?", Kind: turns.KindMatch}))
	f.dispatcher.err = errors.New("graph down")

	rec := f.do(t, http.MethodPost, "/admin/patients/"+p.ID+"/responses", `{"content":"Bonjour"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	latest, err := f.turns.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest.Responses, 1)
	assert.False(t, latest.Responses[0].Sent())
}

func TestAdminManualResponseWaitsForPhoneLock(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	ctx := context.Background()
	p, _, err := f.patients.Create(ctx, "+33600000004", "")
	require.NoError(t, err)
	require.NoError(t, f.turns.Create(ctx, &turns.Turn{PatientID: p.ID, Content: "?", Kind: turns.KindMatch}))

	unlock, err := f.locker.Acquire(ctx, p.Phone)
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/admin/patients/"+p.ID+"/responses", bytes.NewBufferString(`{"content":"Bonjour"}`)).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, f.dispatcher.sent)
	latest, err := f.turns.Latest(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, latest.Responses)

	unlock()
	rec = f.do(t, http.MethodPost, "/admin/patients/"+p.ID+"/responses", `{"content":"Bonjour"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminManualResponseRequiresContent(t *testing.T) {
	f := newAdminFixture(t, stubStats{})
	rec := f.do(t, http.MethodPost, "/admin/patients/x/responses", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStats(t *testing.T) {
	f := newAdminFixture(t, stubStats{})

	rec := f.do(t, http.MethodGet, "/admin/stats/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash stats.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 3, dash.TotalPatients)

	for _, path := range []string{"/admin/stats/responses", "/admin/stats/monthly", "/admin/patients"} {
		rec = f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAdminStatsErrors(t *testing.T) {
	f := newAdminFixture(t, stubStats{err: errors.New("db down")})
	rec := f.do(t, http.MethodGet, "/admin/stats/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	f = newAdminFixture(t, nil)
	rec = f.do(t, http.MethodGet, "/admin/stats/monthly", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
