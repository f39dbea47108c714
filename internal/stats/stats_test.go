package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
)

func newService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc := NewService(db)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC) }
	return svc, mock
}

func TestDashboard(t *testing.T) {
	svc, mock := newService(t)
	startOfDay := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM conversations").
		WithArgs(startOfDay).
		WillReturnRows(sqlmock.NewRows([]string{"patients", "today", "scored", "matched", "avg"}).
			AddRow(12, 5, 8, 6, 0.8333))

	got, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Dashboard{TotalPatients: 12, ConversationsToday: 5, ResponseRate: 75, MatchAccuracy: 83}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardEmptyHistory(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery("SELECT .* FROM conversations").
		WillReturnRows(sqlmock.NewRows([]string{"patients", "today", "scored", "matched", "avg"}).
			AddRow(0, 0, 0, 0, nil))

	got, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Dashboard{}, got)
}

func TestDashboardQueryError(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery("SELECT .* FROM conversations").WillReturnError(errors.New("boom"))

	_, err := svc.Dashboard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats: dashboard")
}

func TestResponseDistribution(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery("SELECT .* FROM conversations c\\s+WHERE c.kind = 'match'").
		WillReturnRows(sqlmock.NewRows([]string{"total", "matched", "manual"}).AddRow(8, 5, 1))

	got, err := svc.ResponseDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Slice{
		{Name: "Matched", Value: 63},
		{Name: "Manual", Value: 13},
		{Name: "Unmatched", Value: 25},
	}, got)
}

func TestResponseDistributionEmpty(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery("SELECT .* FROM conversations").
		WillReturnRows(sqlmock.NewRows([]string{"total", "matched", "manual"}).AddRow(0, 0, 0))

	got, err := svc.ResponseDistribution(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestMonthly(t *testing.T) {
	svc, mock := newService(t)
	since := time.Date(2024, 12, 15, 14, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT date_trunc").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"month", "arabic", "french"}).
			AddRow(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 3, 7).
			AddRow(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 0, 2))

	got, err := svc.Monthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []MonthlyCount{
		{Name: "Apr", Month: "2025-04", Arabic: 3, French: 7},
		{Name: "May", Month: "2025-05", Arabic: 0, French: 2},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatients(t *testing.T) {
	svc, mock := newService(t)
	last := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT p.id, p.phone").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "name", "language", "state", "last_interacted_at", "conversations"}).
			AddRow("p1", "+212600000001", "Salma", "ARABIC", "GENERAL_CONVERSATION", last, 4).
			AddRow("p2", "+33600000002", nil, nil, "WELCOME", nil, 1))

	got, err := svc.Patients(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, patients.LanguageArabic, got[0].Language)
	assert.Equal(t, 4, got[0].Conversations)
	require.NotNil(t, got[0].LastInteractedAt)
	assert.True(t, got[0].LastInteractedAt.Equal(last))
	assert.Equal(t, "", got[1].Name)
	assert.Equal(t, patients.Language(""), got[1].Language)
	assert.Equal(t, patients.StateWelcome, got[1].State)
	assert.Nil(t, got[1].LastInteractedAt)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, percent(3, 0))
	assert.Equal(t, 33, percent(1, 3))
	assert.Equal(t, 67, percent(2, 3))
	assert.Equal(t, 100, percent(4, 4))
}
