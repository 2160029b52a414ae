package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/logger"
	"github.com/custodia-labs/searchapi/internal/processors"
	"github.com/custodia-labs/searchapi/internal/processors/aggregation"
	"github.com/custodia-labs/searchapi/internal/processors/nodestatus"
	"github.com/custodia-labs/searchapi/internal/processors/stopwords"
)

func defaultRegistry() *processors.Registry {
	r := processors.NewRegistry()
	processors.RegisterDefaults(r)
	return r
}

func newTestIndex(cfg *domain.IndexConfig, backend *mockBackend, ds *mockDatasource) *Index {
	return NewIndex(cfg, IndexDeps{
		Server:      enabledServer(),
		Backend:     backend,
		Datasources: map[string]driven.Datasource{ds.ID(): ds},
		Registry:    defaultRegistry(),
	})
}

func loadAll(t *testing.T, idx *Index, ids ...string) map[string]*domain.Item {
	t.Helper()
	items, err := idx.LoadItems(context.Background(), ids)
	require.NoError(t, err)
	return items
}

func TestIndex_RejectedItemsAreHandledButNotIndexed(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Processors[nodestatus.ID] = domain.ProcessorSettings{Status: true}
	backend := newMockBackend()
	idx := newTestIndex(cfg, backend, newArticles())

	items := loadAll(t, idx, "node|1", "node|2", "node|3")
	handled, err := idx.Index(context.Background(), items)

	require.NoError(t, err)
	assert.Equal(t, []string{"node|1", "node|2", "node|3"}, handled)
	require.Len(t, backend.batches, 1)
	assert.Equal(t, []string{"node|1", "node|3"}, backend.batches[0])
	assert.Equal(t, []string{"node|2"}, backend.deleted)
	assert.Equal(t, domain.PipelineIndexed, idx.LastState())
}

func TestIndex_RejectedItemsKeptPending(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Processors[nodestatus.ID] = domain.ProcessorSettings{Status: true}
	cfg.Options[domain.OptionRejectedItems] = string(domain.RejectedKeepPending)
	backend := newMockBackend()
	idx := newTestIndex(cfg, backend, newArticles())

	handled, err := idx.Index(context.Background(), loadAll(t, idx, "node|1", "node|2", "node|3"))

	require.NoError(t, err)
	assert.Equal(t, []string{"node|1", "node|3"}, handled)
}

func TestIndex_ExtractsConfiguredFields(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Fields["node|author:name"] = domain.FieldConfig{Type: domain.TypeString}
	backend := newMockBackend()
	idx := newTestIndex(cfg, backend, newArticles())

	items := loadAll(t, idx, "node|1", "node|2")
	_, err := idx.Index(context.Background(), items)
	require.NoError(t, err)

	first := backend.items["content"]["node|1"]
	require.NotNil(t, first)
	title, ok := first.GetField("node|title")
	require.True(t, ok)
	assert.Equal(t, []any{"Foo"}, title.Values)
	assert.Equal(t, 5.0, title.Boost)

	author, _ := first.GetField("node|author:name")
	assert.Equal(t, []any{"ada"}, author.Values)

	lang, ok := first.GetField(domain.LanguageFieldID)
	require.True(t, ok)
	assert.Equal(t, []any{"en"}, lang.Values)

	second := backend.items["content"]["node|2"]
	missing, ok := second.GetField("node|author:name")
	require.True(t, ok)
	assert.NotNil(t, missing.Values)
	assert.Empty(t, missing.Values)
	assert.Equal(t, domain.TypeString, missing.OriginalType)

	lang, _ = second.GetField(domain.LanguageFieldID)
	assert.Equal(t, []any{domain.LanguageNone}, lang.Values)
}

func TestIndex_Aggregation(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Fields["combined"] = domain.FieldConfig{Type: domain.TypeText}
	cfg.Processors[aggregation.ID] = domain.ProcessorSettings{
		Status: true,
		Settings: map[string]any{
			"fields": map[string]any{
				"combined": map[string]any{"type": "fulltext", "fields": []any{"node|title", "node|subtitle"}},
				"total":    map[string]any{"type": "count", "fields": []any{"node|title"}},
			},
		},
	}
	backend := newMockBackend()
	idx := newTestIndex(cfg, backend, newArticles())

	_, err := idx.Index(context.Background(), loadAll(t, idx, "node|1"))
	require.NoError(t, err)

	combined, ok := backend.items["content"]["node|1"].GetField("combined")
	require.True(t, ok)
	assert.Equal(t, []any{"Foo\n\nBar"}, combined.Values)
	_, ok = backend.items["content"]["node|1"].GetField("total")
	assert.False(t, ok, "aggregates that are not index fields are not indexed")

	fields := idx.Fields(true)
	assert.Contains(t, fields, "combined")
	assert.Contains(t, idx.FulltextFields(true), "combined")
}

func TestIndex_Preconditions(t *testing.T) {
	ctx := context.Background()
	ds := newArticles()

	t.Run("read only", func(t *testing.T) {
		cfg := newArticleConfig("content")
		cfg.ReadOnly = true
		backend := newMockBackend()
		idx := newTestIndex(cfg, backend, ds)

		handled, err := idx.Index(ctx, loadAll(t, idx, "node|1"))
		require.NoError(t, err)
		assert.Empty(t, handled)
		assert.Empty(t, backend.batches)
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := newArticleConfig("content")
		cfg.Enabled = false
		idx := newTestIndex(cfg, newMockBackend(), ds)

		_, err := idx.Index(ctx, loadAll(t, idx, "node|1"))
		assert.ErrorIs(t, err, domain.ErrIndexDisabled)
		_, err = idx.Search(ctx, domain.NewQuery("content", "foo"))
		assert.ErrorIs(t, err, domain.ErrIndexDisabled)
	})

	t.Run("no fields", func(t *testing.T) {
		cfg := domain.NewIndexConfig("content", "Content", "default", "node")
		idx := newTestIndex(cfg, newMockBackend(), ds)

		_, err := idx.Index(ctx, loadAll(t, idx, "node|1"))
		assert.ErrorIs(t, err, domain.ErrNoFieldsConfigured)
	})

	t.Run("no server", func(t *testing.T) {
		idx := NewIndex(newArticleConfig("content"), IndexDeps{
			Datasources: map[string]driven.Datasource{"node": ds},
		})

		_, err := idx.Index(ctx, loadAll(t, idx, "node|1"))
		assert.ErrorIs(t, err, domain.ErrNoServer)
	})

	t.Run("server disabled", func(t *testing.T) {
		server := enabledServer()
		server.Enabled = false
		idx := NewIndex(newArticleConfig("content"), IndexDeps{
			Server:      server,
			Backend:     newMockBackend(),
			Datasources: map[string]driven.Datasource{"node": ds},
		})

		_, err := idx.Index(ctx, loadAll(t, idx, "node|1"))
		assert.ErrorIs(t, err, domain.ErrServerDisabled)
	})
}

func TestIndex_BackendErrorPropagates(t *testing.T) {
	backend := newMockBackend()
	backend.indexErr = errors.New("disk full")
	idx := newTestIndex(newArticleConfig("content"), backend, newArticles())

	handled, err := idx.Index(context.Background(), loadAll(t, idx, "node|1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, handled)
}

func TestIndex_ReentrantCallFails(t *testing.T) {
	var inner error
	var idx *Index
	idx = NewIndex(newArticleConfig("content"), IndexDeps{
		Server:      enabledServer(),
		Backend:     newMockBackend(),
		Datasources: map[string]driven.Datasource{"node": newArticles()},
		Alterers: []IndexItemsAlterer{
			func(_ *domain.IndexConfig, items map[string]*domain.Item) {
				_, inner = idx.Index(context.Background(), items)
			},
		},
	})

	_, err := idx.Index(context.Background(), loadAll(t, idx, "node|1"))

	require.NoError(t, err)
	assert.ErrorIs(t, inner, domain.ErrReentrantPipeline)
}

func TestIndex_AltererRemovalCountsAsRejected(t *testing.T) {
	backend := newMockBackend()
	idx := NewIndex(newArticleConfig("content"), IndexDeps{
		Server:      enabledServer(),
		Backend:     backend,
		Datasources: map[string]driven.Datasource{"node": newArticles()},
		Alterers: []IndexItemsAlterer{
			func(_ *domain.IndexConfig, items map[string]*domain.Item) {
				delete(items, "node|3")
			},
		},
	})

	handled, err := idx.Index(context.Background(), loadAll(t, idx, "node|1", "node|3"))

	require.NoError(t, err)
	assert.Equal(t, []string{"node|1", "node|3"}, handled)
	assert.Equal(t, []string{"node|1"}, backend.batches[0])
}

func TestIndex_CustomDataTypes(t *testing.T) {
	location := domain.DataTypeInfo{
		ID:       "location",
		Fallback: domain.TypeString,
		Convert: func(v any, _ string) (any, bool) {
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			return "geo:" + s, true
		},
	}
	cfg := newArticleConfig("content")
	cfg.Fields["node|title"] = domain.FieldConfig{Type: domain.TypeString, RealType: "location"}

	for _, supported := range []bool{true, false} {
		backend := newMockBackend()
		backend.features["search_api_data_type_location"] = supported
		idx := NewIndex(cfg, IndexDeps{
			Server:      enabledServer(),
			Backend:     backend,
			Datasources: map[string]driven.Datasource{"node": newArticles()},
			DataTypes:   domain.NewDataTypeRegistry(location),
		})
		_, err := idx.Index(context.Background(), loadAll(t, idx, "node|1"))
		require.NoError(t, err)

		title, _ := backend.items["content"]["node|1"].GetField("node|title")
		if supported {
			assert.Equal(t, "location", title.Type)
			assert.Equal(t, []any{"geo:Foo"}, title.Values)
		} else {
			assert.Equal(t, domain.TypeString, title.Type)
			assert.Equal(t, []any{"Foo"}, title.Values)
		}
	}
}

func TestIndex_Search(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Processors[stopwords.ID] = domain.ProcessorSettings{Status: true}
	backend := newMockBackend()
	backend.results = []domain.Result{{ID: "node|1", DatasourceID: "node", Score: 1.5}}
	idx := newTestIndex(cfg, backend, newArticles())

	q := domain.NewQuery("", "the", "fox")
	rs, err := idx.Search(context.Background(), q)

	require.NoError(t, err)
	assert.Equal(t, "content", q.IndexID)
	assert.Equal(t, []string{"fox"}, q.Keys)
	assert.Equal(t, []string{"the"}, rs.Ignored)
	assert.Len(t, rs.Results, 1)
	assert.Equal(t, domain.PipelineDone, idx.LastState())
}

func TestIndex_SearchBackendError(t *testing.T) {
	backend := newMockBackend()
	backend.searchErr = errors.New("unavailable")
	idx := newTestIndex(newArticleConfig("content"), backend, newArticles())

	_, err := idx.Search(context.Background(), domain.NewQuery("content", "x"))

	require.Error(t, err)
	assert.Equal(t, domain.PipelineExecuting, idx.LastState())

	backend.searchErr = nil
	_, err = idx.Search(context.Background(), domain.NewQuery("content", "x"))
	assert.NoError(t, err, "a failed run must not block later runs")
}

func TestIndex_FieldsAndAdditionalFields(t *testing.T) {
	cfg := newArticleConfig("content")
	idx := newTestIndex(cfg, newMockBackend(), newArticles())

	all := idx.Fields(false)
	assert.Contains(t, all, "node|title")
	assert.Contains(t, all, "node|created")
	assert.Contains(t, all, domain.LanguageFieldID)
	assert.Equal(t, domain.TypeDate, all["node|created"].Type)

	indexed := idx.Fields(true)
	assert.Len(t, indexed, 3)
	assert.True(t, indexed[domain.LanguageFieldID].Indexed)

	assert.Equal(t, map[string]string{"node|author": "Author"}, idx.AdditionalFields())
	assert.Equal(t, []string{"node|body", "node|title"}, idx.FulltextFields(true))

	all["node|title"].Label = "changed"
	assert.NotEqual(t, "changed", idx.Fields(false)["node|title"].Label, "Fields must return copies")
}

func TestIndex_AdditionalFieldsOption(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Options[OptionAdditionalFields] = []any{"node|author"}
	idx := newTestIndex(cfg, newMockBackend(), newArticles())

	fields := idx.Fields(false)
	assert.Contains(t, fields, "node|author:name")
	assert.Equal(t, "Author » Name", fields["node|author:name"].Label)
	assert.NotContains(t, idx.AdditionalFields(), "node|author")
}

func TestIndex_PropertyDefinitions(t *testing.T) {
	cfg := newArticleConfig("content")
	cfg.Processors[aggregation.ID] = domain.ProcessorSettings{
		Status: true,
		Settings: map[string]any{"fields": map[string]any{
			"total": map[string]any{"type": "count", "fields": []any{"node|title"}},
		}},
	}
	ds := newArticles()
	idx := newTestIndex(cfg, newMockBackend(), ds)

	indexLevel, err := idx.PropertyDefinitions("")
	require.NoError(t, err)
	_, hasLang := indexLevel.Property(domain.LanguageFieldID)
	_, hasTotal := indexLevel.Property("total")
	assert.True(t, hasLang)
	assert.True(t, hasTotal)

	nodeProps, err := idx.PropertyDefinitions("node")
	require.NoError(t, err)
	assert.Len(t, nodeProps.Properties, len(ds.def.Properties))

	_, err = idx.PropertyDefinitions("files")
	assert.ErrorIs(t, err, domain.ErrUnknownDatasource)
}

func TestIndex_ProcessorsAndResetCaches(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetVerbose(true)
	defer func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	}()

	cfg := newArticleConfig("content")
	cfg.Processors[stopwords.ID] = domain.ProcessorSettings{Status: true}
	cfg.Processors[nodestatus.ID] = domain.ProcessorSettings{Status: true}

	var idx *Index
	idx = NewIndex(cfg, IndexDeps{
		Server:      enabledServer(),
		Backend:     newMockBackend(),
		Datasources: map[string]driven.Datasource{"node": newArticles()},
		Registry:    defaultRegistry(),
		Alterers: []IndexItemsAlterer{
			func(*domain.IndexConfig, map[string]*domain.Item) { idx.ResetCaches() },
		},
	})

	procs := idx.Processors(domain.StagePreprocessIndex)
	require.Len(t, procs, 2)
	assert.Equal(t, nodestatus.ID, procs[0].ID())
	assert.Equal(t, stopwords.ID, procs[1].ID())
	assert.Len(t, idx.Processors(domain.StagePreprocessQuery), 1)

	_, err := idx.Index(context.Background(), loadAll(t, idx, "node|1"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "caches were reset during a pipeline run")
	assert.Len(t, idx.Processors(domain.StagePreprocessIndex), 2)
}

func TestIndex_LoadItems(t *testing.T) {
	ds := newArticles()
	idx := newTestIndex(newArticleConfig("content"), newMockBackend(), ds)

	items, err := idx.LoadItems(context.Background(), []string{"node|1", "node|99", "files|1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Contains(t, items, "node|1")

	ds.loadErr = errors.New("db down")
	_, err = idx.LoadItems(context.Background(), []string{"node|1"})
	assert.Error(t, err)
}

func TestIndex_ReindexAndClear(t *testing.T) {
	tracker := newRecordingTracker()
	backend := newMockBackend()
	idx := NewIndex(newArticleConfig("content"), IndexDeps{
		Server:      enabledServer(),
		Backend:     backend,
		Datasources: map[string]driven.Datasource{"node": newArticles()},
		Tracker:     tracker,
	})

	require.NoError(t, idx.Reindex(context.Background()))
	assert.Equal(t, []string{"content"}, tracker.reindexed)

	require.NoError(t, idx.Clear(context.Background()))
	assert.Equal(t, []string{"content"}, backend.cleared)
	assert.Len(t, tracker.reindexed, 2)

	readOnly := newArticleConfig("ro")
	readOnly.ReadOnly = true
	ro := NewIndex(readOnly, IndexDeps{Server: enabledServer(), Backend: backend, Tracker: tracker})
	require.NoError(t, ro.Clear(context.Background()))
	assert.Len(t, tracker.reindexed, 2)
}

// recordingTracker records TrackAllItemsUpdated calls.
type recordingTracker struct {
	driven.Tracker
	reindexed []string
}

func newRecordingTracker() *recordingTracker {
	return &recordingTracker{}
}

func (r *recordingTracker) TrackAllItemsUpdated(_ context.Context, indexID string) error {
	r.reindexed = append(r.reindexed, indexID)
	return nil
}
