package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/timeseries"
)

// timestampLayout has fixed-width fractional seconds so stored timestamps
// sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound indicates the archive holds no matching run.
var ErrRunNotFound = errors.New("run not found")

// Run is one archived analysis run.
type Run struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	SessionCount int       `json:"session_count"`
	PairCount    int       `json:"pair_count"`
}

// PairPoint is a pair's agreement in one session of an archived run.
type PairPoint struct {
	SessionID string  `json:"session_id"`
	Agree     int     `json:"agree_count"`
	Disagree  int     `json:"disagree_count"`
	Total     int     `json:"total"`
	Percent   float64 `json:"agreement_percent"`
}

// Archive keeps every analysis run in an SQLite database so results can be
// compared across runs.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the archive at path. ":memory:" opens a
// private in-memory archive.
func OpenArchive(path string) (*Archive, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	// Writes are serialized by SQLite; one connection also keeps an
	// in-memory database alive for the archive's lifetime.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to archive %s", path)
	}

	archive := &Archive{db: db}
	if err := archive.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize archive schema")
	}
	return archive, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		session_count INTEGER NOT NULL,
		pair_count INTEGER NOT NULL,
		series TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_analyses (
		run_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		vote_count INTEGER NOT NULL,
		party_count INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (run_id, session_id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pair_agreements (
		run_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		party_a TEXT NOT NULL,
		party_b TEXT NOT NULL,
		agree_count INTEGER NOT NULL,
		disagree_count INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percent REAL NOT NULL,
		PRIMARY KEY (run_id, session_id, party_a, party_b),
		FOREIGN KEY (run_id, session_id) REFERENCES session_analyses(run_id, session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_pair_agreements_pair ON pair_agreements(party_a, party_b);
	`
	_, err := a.db.Exec(schema)
	return err
}

// RecordRun stores the analyses and series of one run in a single
// transaction. Analyses are stored in the given order.
func (a *Archive) RecordRun(ctx context.Context, analyses []*agreement.SessionAnalysis, series *timeseries.Series) (*Run, error) {
	seriesData, err := json.Marshal(series)
	if err != nil {
		return nil, errors.Wrap(err, "encode series")
	}

	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if series != nil {
		run.SessionCount = series.SessionCount
		run.PairCount = len(series.ByPair)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, session_count, pair_count, series) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(timestampLayout), run.SessionCount, run.PairCount, string(seriesData),
	); err != nil {
		return nil, errors.Wrap(err, "insert run")
	}

	for seq, analysis := range analyses {
		if analysis == nil {
			continue
		}
		data, err := json.Marshal(analysis)
		if err != nil {
			return nil, errors.Wrapf(err, "encode analysis %s", analysis.SessionID)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_analyses (run_id, session_id, seq, vote_count, party_count, data) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, analysis.SessionID, seq, analysis.VoteCount, analysis.PartyCount, string(data),
		); err != nil {
			return nil, errors.Wrapf(err, "insert analysis %s", analysis.SessionID)
		}

		for _, rec := range analysis.AllPairs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pair_agreements (run_id, session_id, party_a, party_b, agree_count, disagree_count, total, percent)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, analysis.SessionID, rec.A, rec.B, rec.Agree, rec.Disagree, rec.Total, rec.Percent,
			); err != nil {
				return nil, errors.Wrapf(err, "insert pair %s for %s", rec.String(), analysis.SessionID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit run")
	}
	return run, nil
}

// Runs lists archived runs, newest first.
func (a *Archive) Runs(ctx context.Context) ([]Run, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, created_at, session_count, pair_count FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run.
func (a *Archive) LatestRun(ctx context.Context) (*Run, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, created_at, session_count, pair_count FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithHint(ErrRunNotFound, "run the timeseries command with --archive first")
	}
	return run, err
}

// Series returns the series stored with a run.
func (a *Archive) Series(ctx context.Context, runID string) (*timeseries.Series, error) {
	var data string
	err := a.db.QueryRowContext(ctx, `SELECT series FROM runs WHERE id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query run %s", runID)
	}

	var series timeseries.Series
	if err := json.Unmarshal([]byte(data), &series); err != nil {
		return nil, errors.Wrapf(err, "decode series of run %s", runID)
	}
	return &series, nil
}

// Analysis returns one session analysis of a run.
func (a *Archive) Analysis(ctx context.Context, runID, sessionID string) (*agreement.SessionAnalysis, error) {
	var data string
	err := a.db.QueryRowContext(ctx,
		`SELECT data FROM session_analyses WHERE run_id = ? AND session_id = ?`, runID, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query analysis %s", sessionID)
	}

	var analysis agreement.SessionAnalysis
	if err := json.Unmarshal([]byte(data), &analysis); err != nil {
		return nil, errors.Wrapf(err, "decode analysis %s", sessionID)
	}
	analysis.RestorePartyIDs()
	return &analysis, nil
}

// PairHistory returns a pair's agreement in each session of a run, in the
// run's session order. Sessions where the pair had no common vote are
// absent.
func (a *Archive) PairHistory(ctx context.Context, runID string, pair agreement.PartyPair) ([]PairPoint, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT p.session_id, p.agree_count, p.disagree_count, p.total, p.percent
		FROM pair_agreements p
		JOIN session_analyses s ON s.run_id = p.run_id AND s.session_id = p.session_id
		WHERE p.run_id = ? AND p.party_a = ? AND p.party_b = ?
		ORDER BY s.seq`,
		runID, pair.A, pair.B)
	if err != nil {
		return nil, errors.Wrapf(err, "query history of %s", pair.String())
	}
	defer rows.Close()

	points := make([]PairPoint, 0)
	for rows.Next() {
		var p PairPoint
		if err := rows.Scan(&p.SessionID, &p.Agree, &p.Disagree, &p.Total, &p.Percent); err != nil {
			return nil, errors.Wrap(err, "scan pair history")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
	)
	if err := row.Scan(&run.ID, &createdAt, &run.SessionCount, &run.PairCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan run")
	}

	parsed, err := time.Parse(timestampLayout, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "parse run timestamp %q", createdAt)
	}
	run.CreatedAt = parsed
	return &run, nil
}
