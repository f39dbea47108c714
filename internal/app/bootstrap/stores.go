package bootstrap

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-autoresponder/internal/patients"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/internal/settings"
	"github.com/wolfman30/clinic-autoresponder/internal/stats"
	"github.com/wolfman30/clinic-autoresponder/internal/turns"
)

// Stores groups the persistence layer.
type Stores struct {
	Patients patients.Repository
	Scripts  scripts.Repository
	Settings settings.Store
	Turns    turns.Store
	// Stats is nil for in-memory stores.
	Stats *stats.Service
}

// BuildStores uses Postgres when both handles are set. Scripts and stats go
// through database/sql; the rest through the pgx pool.
func BuildStores(pool *pgxpool.Pool, db *sql.DB) Stores {
	if pool == nil || db == nil {
		return MemoryStores()
	}
	return Stores{
		Patients: patients.NewPostgresRepository(pool),
		Scripts:  scripts.NewSQLRepository(db),
		Settings: settings.NewPostgresStore(pool),
		Turns:    turns.NewPostgresStore(pool),
		Stats:    stats.NewService(db),
	}
}

// MemoryStores keeps everything in process, for local runs without a database.
func MemoryStores() Stores {
	return Stores{
		Patients: patients.NewInMemoryRepository(),
		Scripts:  scripts.NewMemoryRepository(),
		Settings: settings.NewMemoryStore(),
		Turns:    turns.NewMemoryStore(),
	}
}
