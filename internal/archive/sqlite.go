package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/archive-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Output tables are INSERT-only: nothing in this store ever updates or
// deletes a row of llm_outputs, derived_outputs, or processing_history.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	raw_source TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS llm_outputs (
	id           TEXT PRIMARY KEY,
	item_id      TEXT NOT NULL REFERENCES items(id),
	output_type  TEXT NOT NULL,
	output_value TEXT NOT NULL,
	model        TEXT,
	cost_usd     REAL,
	generated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS derived_outputs (
	id                  TEXT PRIMARY KEY,
	item_id             TEXT NOT NULL REFERENCES items(id),
	output_type         TEXT NOT NULL,
	output_value        TEXT NOT NULL,
	transformer_version TEXT NOT NULL,
	transform_manifest  TEXT NOT NULL,
	source_outputs      TEXT NOT NULL,
	generated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_history (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL REFERENCES items(id),
	version         TEXT NOT NULL,
	collection_name TEXT NOT NULL,
	processed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_llm_outputs_item ON llm_outputs(item_id, output_type);
CREATE INDEX IF NOT EXISTS idx_derived_outputs_item ON derived_outputs(item_id, output_type);
CREATE INDEX IF NOT EXISTS idx_processing_history_item ON processing_history(item_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, id string, rawSource string) error {
	exists, err := s.itemExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{ID: id}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, raw_source, created_at) VALUES (?, ?, ?)`,
		id, rawSource, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert item %s", id)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{ID: id}

	err := s.db.QueryRowContext(ctx,
		`SELECT raw_source, created_at FROM items WHERE id = ?`, id,
	).Scan(&item.RawSource, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get item %s", id)
	}

	if err := s.loadLLMOutputs(ctx, item); err != nil {
		return nil, err
	}
	if err := s.loadDerivedOutputs(ctx, item); err != nil {
		return nil, err
	}
	if err := s.loadProcessingHistory(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *SQLiteStore) loadLLMOutputs(ctx context.Context, item *model.Item) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_type, output_value, model, cost_usd, generated_at
		 FROM llm_outputs WHERE item_id = ? ORDER BY rowid`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: load llm outputs %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var out model.LLMOutput
		var valueJSON string
		var mdl sql.NullString
		var cost sql.NullFloat64
		if err := rows.Scan(&out.OutputType, &valueJSON, &mdl, &cost, &out.GeneratedAt); err != nil {
			return eris.Wrapf(err, "sqlite: scan llm output %s", item.ID)
		}
		if err := json.Unmarshal([]byte(valueJSON), &out.OutputValue); err != nil {
			return &ParseError{ID: item.ID, Err: err}
		}
		out.Model = mdl.String
		out.CostUSD = cost.Float64
		item.LLMOutputs = append(item.LLMOutputs, out)
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate llm outputs")
}

func (s *SQLiteStore) loadDerivedOutputs(ctx context.Context, item *model.Item) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_type, output_value, transformer_version, transform_manifest, source_outputs, generated_at
		 FROM derived_outputs WHERE item_id = ? ORDER BY rowid`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: load derived outputs %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var out model.DerivedOutput
		var valueJSON, manifestJSON, sourcesJSON string
		if err := rows.Scan(&out.OutputType, &valueJSON, &out.TransformerVersion, &manifestJSON, &sourcesJSON, &out.GeneratedAt); err != nil {
			return eris.Wrapf(err, "sqlite: scan derived output %s", item.ID)
		}
		if err := json.Unmarshal([]byte(valueJSON), &out.OutputValue); err != nil {
			return &ParseError{ID: item.ID, Err: err}
		}
		if err := json.Unmarshal([]byte(manifestJSON), &out.TransformManifest); err != nil {
			return &ParseError{ID: item.ID, Err: err}
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &out.SourceOutputs); err != nil {
			return &ParseError{ID: item.ID, Err: err}
		}
		item.DerivedOutputs = append(item.DerivedOutputs, out)
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate derived outputs")
}

func (s *SQLiteStore) loadProcessingHistory(ctx context.Context, item *model.Item) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, collection_name, processed_at
		 FROM processing_history WHERE item_id = ? ORDER BY rowid`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: load processing history %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.ProcessingRecord
		if err := rows.Scan(&rec.Version, &rec.CollectionName, &rec.ProcessedAt); err != nil {
			return eris.Wrapf(err, "sqlite: scan processing record %s", item.ID)
		}
		item.ProcessingHistory = append(item.ProcessingHistory, rec)
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate processing history")
}

func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate ids")
}

func (s *SQLiteStore) AppendLLMOutput(ctx context.Context, id string, out model.LLMOutput) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	valueJSON, err := json.Marshal(out.OutputValue)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal llm output value")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_outputs (id, item_id, output_type, output_value, model, cost_usd, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), id, out.OutputType, string(valueJSON), out.Model, out.CostUSD, generatedAt(out.GeneratedAt),
	)
	return eris.Wrapf(err, "sqlite: append llm output %s", id)
}

func (s *SQLiteStore) AppendDerivedOutput(ctx context.Context, id string, out model.DerivedOutput) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	valueJSON, err := json.Marshal(out.OutputValue)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal derived output value")
	}
	manifestJSON, err := json.Marshal(out.TransformManifest)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal manifest")
	}
	sources := out.SourceOutputs
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source outputs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO derived_outputs (id, item_id, output_type, output_value, transformer_version, transform_manifest, source_outputs, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), id, out.OutputType, string(valueJSON), out.TransformerVersion,
		string(manifestJSON), string(sourcesJSON), generatedAt(out.GeneratedAt),
	)
	return eris.Wrapf(err, "sqlite: append derived output %s", id)
}

func (s *SQLiteStore) AppendProcessingRecord(ctx context.Context, id string, rec model.ProcessingRecord) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_history (id, item_id, version, collection_name, processed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), id, rec.Version, rec.CollectionName, generatedAt(rec.ProcessedAt),
	)
	return eris.Wrapf(err, "sqlite: append processing record %s", id)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, pipeline string, dryRun bool) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Pipeline:  pipeline,
		DryRun:    dryRun,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, dry_run, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.DryRun, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(status), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline, dry_run, status, stats, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var statsJSON sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.DryRun, &r.Status, &statsJSON, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if statsJSON.Valid {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
			}
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// helpers

func (s *SQLiteStore) itemExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check item %s", id)
	}
	return true, nil
}

func (s *SQLiteStore) requireItem(ctx context.Context, id string) error {
	exists, err := s.itemExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return &NotFoundError{ID: id}
	}
	return nil
}

func generatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
