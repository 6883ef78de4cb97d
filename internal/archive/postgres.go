package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/archive-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool creates a PostgresStore on an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	raw_source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS llm_outputs (
	id           TEXT PRIMARY KEY,
	item_id      TEXT NOT NULL REFERENCES items(id),
	seq          BIGSERIAL,
	output_type  TEXT NOT NULL,
	output_value TEXT NOT NULL,
	model        TEXT,
	cost_usd     DOUBLE PRECISION,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS derived_outputs (
	id                  TEXT PRIMARY KEY,
	item_id             TEXT NOT NULL REFERENCES items(id),
	seq                 BIGSERIAL,
	output_type         TEXT NOT NULL,
	output_value        TEXT NOT NULL,
	transformer_version TEXT NOT NULL,
	transform_manifest  TEXT NOT NULL,
	source_outputs      TEXT NOT NULL,
	generated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_history (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL REFERENCES items(id),
	seq             BIGSERIAL,
	version         TEXT NOT NULL,
	collection_name TEXT NOT NULL,
	processed_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	dry_run     BOOLEAN NOT NULL DEFAULT false,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_llm_outputs_item ON llm_outputs(item_id, output_type);
CREATE INDEX IF NOT EXISTS idx_derived_outputs_item ON derived_outputs(item_id, output_type);
CREATE INDEX IF NOT EXISTS idx_processing_history_item ON processing_history(item_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, id string, rawSource string) error {
	// INSERT ... ON CONFLICT DO NOTHING keeps raw source write-once without
	// a read-modify-write race.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO items (id, raw_source, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		id, rawSource, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert item %s", id)
	}
	if tag.RowsAffected() == 0 {
		return &ConflictError{ID: id}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{ID: id}

	err := s.pool.QueryRow(ctx,
		`SELECT raw_source, created_at FROM items WHERE id = $1`, id,
	).Scan(&item.RawSource, &item.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get item %s", id)
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

func (s *PostgresStore) loadLLMOutputs(ctx context.Context, item *model.Item) error {
	rows, err := s.pool.Query(ctx,
		`SELECT output_type, output_value, model, cost_usd, generated_at
		 FROM llm_outputs WHERE item_id = $1 ORDER BY seq`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: load llm outputs %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var out model.LLMOutput
		var valueJSON string
		var mdl sql.NullString
		var cost sql.NullFloat64
		if err := rows.Scan(&out.OutputType, &valueJSON, &mdl, &cost, &out.GeneratedAt); err != nil {
			return eris.Wrapf(err, "postgres: scan llm output %s", item.ID)
		}
		if err := json.Unmarshal([]byte(valueJSON), &out.OutputValue); err != nil {
			return &ParseError{ID: item.ID, Err: err}
		}
		out.Model = mdl.String
		out.CostUSD = cost.Float64
		item.LLMOutputs = append(item.LLMOutputs, out)
	}
	return eris.Wrap(rows.Err(), "postgres: iterate llm outputs")
}

func (s *PostgresStore) loadDerivedOutputs(ctx context.Context, item *model.Item) error {
	rows, err := s.pool.Query(ctx,
		`SELECT output_type, output_value, transformer_version, transform_manifest, source_outputs, generated_at
		 FROM derived_outputs WHERE item_id = $1 ORDER BY seq`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: load derived outputs %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var out model.DerivedOutput
		var valueJSON, manifestJSON, sourcesJSON string
		if err := rows.Scan(&out.OutputType, &valueJSON, &out.TransformerVersion, &manifestJSON, &sourcesJSON, &out.GeneratedAt); err != nil {
			return eris.Wrapf(err, "postgres: scan derived output %s", item.ID)
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
	return eris.Wrap(rows.Err(), "postgres: iterate derived outputs")
}

func (s *PostgresStore) loadProcessingHistory(ctx context.Context, item *model.Item) error {
	rows, err := s.pool.Query(ctx,
		`SELECT version, collection_name, processed_at
		 FROM processing_history WHERE item_id = $1 ORDER BY seq`,
		item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: load processing history %s", item.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.ProcessingRecord
		if err := rows.Scan(&rec.Version, &rec.CollectionName, &rec.ProcessedAt); err != nil {
			return eris.Wrapf(err, "postgres: scan processing record %s", item.ID)
		}
		item.ProcessingHistory = append(item.ProcessingHistory, rec)
	}
	return eris.Wrap(rows.Err(), "postgres: iterate processing history")
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate ids")
}

func (s *PostgresStore) AppendLLMOutput(ctx context.Context, id string, out model.LLMOutput) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	valueJSON, err := json.Marshal(out.OutputValue)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal llm output value")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO llm_outputs (id, item_id, output_type, output_value, model, cost_usd, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), id, out.OutputType, string(valueJSON), out.Model, out.CostUSD, generatedAt(out.GeneratedAt),
	)
	return eris.Wrapf(err, "postgres: append llm output %s", id)
}

func (s *PostgresStore) AppendDerivedOutput(ctx context.Context, id string, out model.DerivedOutput) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	valueJSON, err := json.Marshal(out.OutputValue)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal derived output value")
	}
	manifestJSON, err := json.Marshal(out.TransformManifest)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal manifest")
	}
	sources := out.SourceOutputs
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source outputs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO derived_outputs (id, item_id, output_type, output_value, transformer_version, transform_manifest, source_outputs, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), id, out.OutputType, string(valueJSON), out.TransformerVersion,
		string(manifestJSON), string(sourcesJSON), generatedAt(out.GeneratedAt),
	)
	return eris.Wrapf(err, "postgres: append derived output %s", id)
}

func (s *PostgresStore) AppendProcessingRecord(ctx context.Context, id string, rec model.ProcessingRecord) error {
	if err := s.requireItem(ctx, id); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO processing_history (id, item_id, version, collection_name, processed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), id, rec.Version, rec.CollectionName, generatedAt(rec.ProcessedAt),
	)
	return eris.Wrapf(err, "postgres: append processing record %s", id)
}

func (s *PostgresStore) CreateRun(ctx context.Context, pipeline string, dryRun bool) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Pipeline:  pipeline,
		DryRun:    dryRun,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, pipeline, dry_run, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Pipeline, run.DryRun, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		string(status), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, pipeline, dry_run, status, stats, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var statsJSON sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.DryRun, &r.Status, &statsJSON, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if statsJSON.Valid {
			r.Stats = &model.RunStats{}
			if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run stats")
			}
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) requireItem(ctx context.Context, id string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM items WHERE id = $1`, id).Scan(&one)
	if err == pgx.ErrNoRows {
		return &NotFoundError{ID: id}
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check item %s", id)
	}
	return nil
}
