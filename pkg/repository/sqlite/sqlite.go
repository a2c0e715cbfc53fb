package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/interfaces"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite stores the catalogue and the analysis runs in a local database file.
// Suitable for single-host batch runs.
type SQLite struct {
	db            *sql.DB
	risk          *riskRepository
	cascade       *cascadeRepository
	participation *participationRepository
	analysisRun   *analysisRunRepository
}

var _ interfaces.Repository = &SQLite{}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

const schema = `
CREATE TABLE IF NOT EXISTS risks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	quality TEXT NOT NULL DEFAULT '',
	reliability REAL NOT NULL DEFAULT 0,
	subjective_importance REAL NOT NULL DEFAULT 0,
	direct_probability TEXT NOT NULL,
	direct_probability_2050 TEXT NOT NULL,
	direct_impact TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cascades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cause_id INTEGER NOT NULL,
	effect_id INTEGER NOT NULL,
	quality TEXT NOT NULL DEFAULT '',
	damp INTEGER NOT NULL DEFAULT 0,
	matrix TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS participations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	risk_id INTEGER NOT NULL,
	contact TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	direct_analysis_complete INTEGER NOT NULL DEFAULT 0,
	cascade_analysis_complete INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	parameters TEXT NOT NULL,
	probability TEXT NOT NULL,
	impact TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_calculations (
	run_id TEXT NOT NULL,
	risk_id INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (run_id, risk_id),
	FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cascade_calculations (
	run_id TEXT NOT NULL,
	cascade_id INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (run_id, cascade_id),
	FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_participations_risk_id ON participations(risk_id);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_finished_at ON analysis_runs(finished_at);
`

// New opens (or creates) the database at path and applies the schema
func New(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// A single connection serializes writers; SQLite allows only one anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize schema", goerr.V("path", path))
	}

	return &SQLite{
		db:            db,
		risk:          &riskRepository{db: db},
		cascade:       &cascadeRepository{db: db},
		participation: &participationRepository{db: db},
		analysisRun:   &analysisRunRepository{db: db},
	}, nil
}

func (s *SQLite) Risk() interfaces.RiskRepository {
	return s.risk
}

func (s *SQLite) Cascade() interfaces.CascadeRepository {
	return s.cascade
}

func (s *SQLite) Participation() interfaces.ParticipationRepository {
	return s.participation
}

func (s *SQLite) AnalysisRun() interfaces.AnalysisRunRepository {
	return s.analysisRun
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database")
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
