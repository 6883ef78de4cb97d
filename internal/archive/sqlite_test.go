package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archive-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() }) //nolint:errcheck

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_PutGet(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "hello transcript"))

	item, err := store.Get(ctx, "call-001")
	require.NoError(t, err)
	assert.Equal(t, "call-001", item.ID)
	assert.Equal(t, "hello transcript", item.RawSource)
	assert.Empty(t, item.LLMOutputs)
	assert.Empty(t, item.DerivedOutputs)
	assert.Empty(t, item.ProcessingHistory)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestSQLiteStore_PutConflict(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "original"))

	err := store.Put(ctx, "call-001", "replacement")
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	// The original raw source survives.
	item, err := store.Get(ctx, "call-001")
	require.NoError(t, err)
	assert.Equal(t, "original", item.RawSource)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	item, err := store.Get(context.Background(), "missing")
	assert.Nil(t, item)
	assert.True(t, IsNotFound(err))
}

func TestSQLiteStore_AppendsRequireItem(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	err := store.AppendLLMOutput(ctx, "missing", model.LLMOutput{OutputType: "summary"})
	assert.True(t, IsNotFound(err))

	err = store.AppendDerivedOutput(ctx, "missing", model.DerivedOutput{OutputType: "keywords"})
	assert.True(t, IsNotFound(err))

	err = store.AppendProcessingRecord(ctx, "missing", model.ProcessingRecord{Version: "v1"})
	assert.True(t, IsNotFound(err))
}

func TestSQLiteStore_DerivedOutputsAccumulate(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "raw"))

	for i, version := range []string{"v1.0", "v1.1", "v2.0"} {
		err := store.AppendDerivedOutput(ctx, "call-001", model.DerivedOutput{
			OutputType:         "keywords",
			OutputValue:        []string{"term"},
			TransformerVersion: version,
			TransformManifest:  model.Manifest{"keyword_tagger": version},
			GeneratedAt:        time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	item, err := store.Get(ctx, "call-001")
	require.NoError(t, err)

	// All three survive in insertion order; nothing is overwritten.
	require.Len(t, item.DerivedOutputs, 3)
	assert.Equal(t, "v1.0", item.DerivedOutputs[0].TransformerVersion)
	assert.Equal(t, "v2.0", item.DerivedOutputs[2].TransformerVersion)

	latest := item.LatestDerived("keywords")
	require.NotNil(t, latest)
	assert.Equal(t, "v2.0", latest.TransformerVersion)
	assert.Equal(t, model.Manifest{"keyword_tagger": "v2.0"}, latest.TransformManifest)
}

func TestSQLiteStore_LLMOutputRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "raw"))
	require.NoError(t, store.AppendLLMOutput(ctx, "call-001", model.LLMOutput{
		OutputType:  "summary",
		OutputValue: "a short summary",
		Model:       "claude-haiku-4-5-20251001",
		CostUSD:     0.0042,
	}))

	item, err := store.Get(ctx, "call-001")
	require.NoError(t, err)
	require.Len(t, item.LLMOutputs, 1)

	out := item.LLMOutputs[0]
	assert.Equal(t, "summary", out.OutputType)
	assert.Equal(t, "a short summary", out.OutputValue)
	assert.Equal(t, "claude-haiku-4-5-20251001", out.Model)
	assert.InDelta(t, 0.0042, out.CostUSD, 1e-9)
	assert.False(t, out.GeneratedAt.IsZero())
}

func TestSQLiteStore_ProcessingHistory(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "raw"))
	require.NoError(t, store.AppendProcessingRecord(ctx, "call-001", model.ProcessingRecord{
		Version:        "v1.0",
		CollectionName: "transcripts",
	}))
	require.NoError(t, store.AppendProcessingRecord(ctx, "call-001", model.ProcessingRecord{
		Version:        "v1.1",
		CollectionName: "transcripts",
	}))

	item, err := store.Get(ctx, "call-001")
	require.NoError(t, err)
	require.Len(t, item.ProcessingHistory, 2)
	assert.Equal(t, "v1.0", item.ProcessingHistory[0].Version)
	assert.Equal(t, "v1.1", item.ProcessingHistory[1].Version)
}

func TestSQLiteStore_ListIDs(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"call-001", "call-002", "call-003"} {
		require.NoError(t, store.Put(ctx, id, "raw"))
	}

	ids, err = store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"call-001", "call-002", "call-003"}, ids)
}

func TestSQLiteStore_CorruptRecordIsParseError(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "call-001", "raw"))

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO derived_outputs (id, item_id, output_type, output_value, transformer_version, transform_manifest, source_outputs, generated_at)
		 VALUES ('row-1', 'call-001', 'keywords', '{not json', 'v1.0', '{}', '[]', ?)`,
		time.Now().UTC(),
	)
	require.NoError(t, err)

	item, err := store.Get(ctx, "call-001")
	assert.Nil(t, item)
	require.Error(t, err)
	assert.True(t, IsParse(err))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "call-001", pe.ID)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "keywords", false)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	stats := &model.RunStats{Processed: 3, Skipped: 5, Errors: 1}
	require.NoError(t, store.CompleteRun(ctx, run.ID, model.RunStatusComplete, stats))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "keywords", got.Pipeline)
	assert.False(t, got.DryRun)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, *stats, *got.Stats)
	assert.NotNil(t, got.FinishedAt)
}

func TestSQLiteStore_CompleteRunUnknownID(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.CompleteRun(context.Background(), "no-such-run", model.RunStatusComplete, &model.RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}
