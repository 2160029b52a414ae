package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/searchapi/internal/core/domain"
	"github.com/custodia-labs/searchapi/internal/core/ports/driven"
	"github.com/custodia-labs/searchapi/internal/extraction"
	"github.com/custodia-labs/searchapi/internal/logger"
	"github.com/custodia-labs/searchapi/internal/processors"
)

// OptionAdditionalFields lists complex properties whose children are offered as fields.
const OptionAdditionalFields = "additional_fields"

// IndexItemsAlterer may change or remove items before their fields are extracted.
// Removed items count as rejected.
type IndexItemsAlterer func(index *domain.IndexConfig, items map[string]*domain.Item)

// IndexDeps holds the collaborators of an Index.
type IndexDeps struct {
	// Server is the attached server. Nil means no server.
	Server *domain.Server

	// Backend stores the items of Server.
	Backend driven.Backend

	// Datasources provides the datasources by id. Ids the index names but
	// the map lacks are logged and ignored.
	Datasources map[string]driven.Datasource

	// Tracker records pending items. Optional.
	Tracker driven.Tracker

	// Registry builds processors. Nil means no processors.
	Registry *processors.Registry

	// DataTypes resolves custom data types. Nil means defaults only.
	DataTypes *domain.DataTypeRegistry

	// Alterers run before extraction.
	Alterers []IndexItemsAlterer
}

// Index is the aggregate root of one search index. It owns the processor
// chain and the field caches derived from its configuration.
//
// An Index runs one pipeline at a time. Callers serialize access; a second
// call while a run is in flight fails with domain.ErrReentrantPipeline.
type Index struct {
	config      *domain.IndexConfig
	server      *domain.Server
	backend     driven.Backend
	datasources map[string]driven.Datasource
	tracker     driven.Tracker
	registry    *processors.Registry
	dataTypes   *domain.DataTypeRegistry
	alterers    []IndexItemsAlterer
	extractor   *extraction.Extractor
	log         *logger.Logger

	active atomic.Bool

	mu         sync.Mutex
	generation uint64
	cache      *indexCache
	lastState  domain.PipelineState
}

// indexCache is an immutable snapshot of everything derived from the
// index configuration. ResetCaches drops it; the next access builds a new one.
type indexCache struct {
	generation uint64
	chain      *processors.Chain
	properties map[string]*domain.DataDefinition
	fields     map[string]*domain.Field
	additional map[string]string
	indexLevel map[string]bool
}

// NewIndex creates an index for a configuration. The configuration is copied.
func NewIndex(cfg *domain.IndexConfig, deps IndexDeps) *Index {
	if deps.Registry == nil {
		deps.Registry = processors.NewRegistry()
	}
	if deps.DataTypes == nil {
		deps.DataTypes = domain.NewDataTypeRegistry()
	}
	idx := &Index{
		config:      cfg.Clone(),
		server:      deps.Server,
		backend:     deps.Backend,
		datasources: make(map[string]driven.Datasource),
		tracker:     deps.Tracker,
		registry:    deps.Registry,
		dataTypes:   deps.DataTypes,
		alterers:    deps.Alterers,
		extractor:   extraction.New(),
		log:         logger.With("index " + cfg.ID),
		lastState:   domain.PipelineIdle,
	}
	for _, id := range cfg.DatasourceIDs {
		ds, ok := deps.Datasources[id]
		if !ok {
			idx.log.Warn("%v: %s", domain.ErrUnknownDatasource, id)
			continue
		}
		idx.datasources[id] = ds
	}
	return idx
}

// ID returns the index id.
func (i *Index) ID() string {
	return i.config.ID
}

// Config returns a copy of the index configuration.
func (i *Index) Config() *domain.IndexConfig {
	return i.config.Clone()
}

// Server returns the attached server, or nil.
func (i *Index) Server() *domain.Server {
	return i.server
}

// LastState returns the state the most recent pipeline run ended in.
func (i *Index) LastState() domain.PipelineState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastState
}

// ResetCaches drops the processor chain and all field caches. It must not
// be called while a pipeline run is in flight.
func (i *Index) ResetCaches() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.generation++
	i.cache = nil
}

// snapshot returns the current cache, building it when needed.
func (i *Index) snapshot() *indexCache {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cache == nil {
		i.cache = i.buildCache(i.generation)
	}
	return i.cache
}

func (i *Index) buildCache(generation uint64) *indexCache {
	c := &indexCache{
		generation: generation,
		properties: make(map[string]*domain.DataDefinition),
		fields:     make(map[string]*domain.Field),
		additional: make(map[string]string),
		indexLevel: make(map[string]bool),
	}

	info := driven.IndexInfo{
		ID:            i.config.ID,
		DatasourceIDs: append([]string(nil), i.config.DatasourceIDs...),
		EntityTypes:   make(map[string]string, len(i.datasources)),
	}
	for id, ds := range i.datasources {
		info.EntityTypes[id] = ds.EntityType()
	}
	c.chain = processors.NewChain(i.registry, driven.ProcessorContext{
		Index:     info,
		Fields:    i.config.Fields,
		Extractor: i.extractor,
		DataTypes: i.dataTypes,
	}, i.config.Processors)

	configured := make(map[string]map[string]domain.FieldConfig)
	for id, f := range i.config.Fields {
		ds, path := domain.SplitFieldID(id)
		if configured[ds] == nil {
			configured[ds] = make(map[string]domain.FieldConfig)
		}
		configured[ds][path] = f
	}
	additional := make(map[string][]string)
	for _, id := range stringOption(i.config.Options, OptionAdditionalFields) {
		ds, path := domain.SplitFieldID(id)
		additional[ds] = append(additional[ds], path)
	}

	root := &domain.DataDefinition{
		Name:       i.config.ID,
		Label:      i.config.Name,
		Properties: []*domain.DataDefinition{processors.LanguageDefinition()},
	}
	c.chain.AlterPropertyDefinitions(root, "")
	c.properties[""] = root
	for _, p := range root.Properties {
		c.indexLevel[p.Name] = true
	}
	i.discover(c, "", root, configured[""], additional[""])

	for _, dsID := range i.config.DatasourceIDs {
		ds, ok := i.datasources[dsID]
		if !ok {
			continue
		}
		def := ds.PropertyDefinitions()
		if def == nil {
			continue
		}
		props := *def
		props.Properties = append([]*domain.DataDefinition(nil), def.Properties...)
		c.chain.AlterPropertyDefinitions(&props, dsID)
		c.properties[dsID] = &props
		i.discover(c, dsID, &props, configured[dsID], additional[dsID])
	}

	if lang, ok := c.fields[domain.LanguageFieldID]; ok {
		lang.Indexed = true
	}
	return c
}

func (i *Index) discover(c *indexCache, dsID string, root *domain.DataDefinition, configured map[string]domain.FieldConfig, additional []string) {
	found := extraction.Discover(root, configured, extraction.DiscoverOptions{
		Additional: additional,
		DataTypes:  i.dataTypes,
	})
	for path, f := range found.Fields {
		f.ID = domain.CreateCombinedID(dsID, path)
		c.fields[f.ID] = f
	}
	for path, label := range found.Additional {
		c.additional[domain.CreateCombinedID(dsID, path)] = label
	}
}

// Fields returns copies of the fields the index offers, keyed by field id.
// With onlyIndexed set, only configured fields are returned.
func (i *Index) Fields(onlyIndexed bool) map[string]*domain.Field {
	c := i.snapshot()
	out := make(map[string]*domain.Field, len(c.fields))
	for id, f := range c.fields {
		if onlyIndexed && !f.Indexed {
			continue
		}
		out[id] = f.Clone()
	}
	return out
}

// AdditionalFields returns the complex properties not yet expanded, keyed
// by field id, with their display names.
func (i *Index) AdditionalFields() map[string]string {
	c := i.snapshot()
	out := make(map[string]string, len(c.additional))
	for id, label := range c.additional {
		out[id] = label
	}
	return out
}

// FulltextFields returns the ids of fulltext fields, sorted.
func (i *Index) FulltextFields(onlyIndexed bool) []string {
	var ids []string
	for id, f := range i.Fields(onlyIndexed) {
		if f.IsFulltext() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// PropertyDefinitions returns the property tree of a datasource as altered by
// the processors. The empty datasource id returns the index-level properties.
func (i *Index) PropertyDefinitions(datasourceID string) (*domain.DataDefinition, error) {
	def, ok := i.snapshot().properties[datasourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDatasource, datasourceID)
	}
	return def, nil
}

// Processors returns the enabled processors for a stage in execution order.
func (i *Index) Processors(stage domain.Stage) []driven.Processor {
	return i.snapshot().chain.ForStage(stage)
}

// LoadItems loads items by combined id. Ids of unknown datasources and ids
// the datasource cannot load are absent from the result.
func (i *Index) LoadItems(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	byDatasource := make(map[string][]string)
	for _, id := range ids {
		ds, raw := domain.SplitCombinedID(id)
		byDatasource[ds] = append(byDatasource[ds], raw)
	}

	out := make(map[string]*domain.Item, len(ids))
	for dsID, raw := range byDatasource {
		ds, ok := i.datasources[dsID]
		if !ok {
			i.log.Warn("cannot load %d items: %v: %q", len(raw), domain.ErrUnknownDatasource, dsID)
			continue
		}
		items, err := ds.LoadItems(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("load items from %s: %w", dsID, err)
		}
		for _, item := range items {
			out[item.ID] = item
		}
	}
	return out, nil
}

// checkServer returns an error when the index cannot reach a backend.
func (i *Index) checkServer() error {
	if i.server == nil || i.backend == nil {
		return fmt.Errorf("index %q: %w", i.config.ID, domain.ErrNoServer)
	}
	if !i.server.Enabled {
		return fmt.Errorf("index %q: server %q: %w", i.config.ID, i.server.ID, domain.ErrServerDisabled)
	}
	return nil
}

func (i *Index) begin() (*pipelineRun, error) {
	if !i.active.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("index %q: run already in progress: %w", i.config.ID, domain.ErrReentrantPipeline)
	}
	return newPipelineRun(i.config.ID), nil
}

func (i *Index) end(run *pipelineRun, c *indexCache) {
	i.mu.Lock()
	i.lastState = run.state
	stale := c != nil && c.generation != i.generation
	i.mu.Unlock()
	if stale {
		i.log.Warn("caches were reset during a pipeline run")
	}
	i.active.Store(false)
}

// Index processes and indexes items. The map is keyed by combined item id
// and is modified in place. It returns the ids to treat as handled: the
// indexed items plus, unless the index keeps them pending, the rejected ones.
// A read-only index indexes nothing and returns no ids.
func (i *Index) Index(ctx context.Context, items map[string]*domain.Item) ([]string, error) {
	if i.config.ReadOnly {
		return nil, nil
	}
	if !i.config.Enabled {
		return nil, fmt.Errorf("index %q: %w", i.config.ID, domain.ErrIndexDisabled)
	}
	if len(i.config.Fields) == 0 {
		return nil, fmt.Errorf("index %q: %w", i.config.ID, domain.ErrNoFieldsConfigured)
	}
	if err := i.checkServer(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []string{}, nil
	}

	run, err := i.begin()
	if err != nil {
		return nil, err
	}
	c := i.snapshot()
	defer i.end(run, c)

	input := make([]string, 0, len(items))
	for id := range items {
		input = append(input, id)
	}
	sort.Strings(input)

	for _, alter := range i.alterers {
		alter(i.config, items)
	}

	if err := run.advance(domain.PipelineExtractingFields); err != nil {
		return nil, err
	}
	for _, item := range items {
		i.extractItem(c, item)
	}

	if err := run.advance(domain.PipelinePreprocessingIndex); err != nil {
		return nil, err
	}
	c.chain.PreprocessIndexItems(items)

	var rejected []string
	rejectedSet := make(map[string]bool)
	for _, id := range input {
		if _, ok := items[id]; !ok {
			rejected = append(rejected, id)
			rejectedSet[id] = true
		}
	}
	if len(rejected) > 0 {
		i.log.Debug("%d items rejected during preprocessing", len(rejected))
		if err := i.backend.DeleteItems(ctx, i.config, rejected); err != nil {
			i.log.Warn("delete rejected items: %v", err)
		}
	}

	indexedSet := make(map[string]bool, len(items))
	if len(items) > 0 {
		indexed, err := i.backend.IndexItems(ctx, i.config, items)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", i.config.ID, err)
		}
		for _, id := range indexed {
			indexedSet[id] = true
		}
	}

	if err := run.advance(domain.PipelineIndexed); err != nil {
		return nil, err
	}

	keepPending := i.config.RejectedPolicy() == domain.RejectedKeepPending
	handled := make([]string, 0, len(input))
	for _, id := range input {
		if indexedSet[id] || (rejectedSet[id] && !keepPending) {
			handled = append(handled, id)
		}
	}
	return handled, nil
}

// extractItem fills the configured fields of one item.
func (i *Index) extractItem(c *indexCache, item *domain.Item) {
	byPath := make(map[string]*domain.Field)
	var fields []*domain.Field
	var clashes []map[string]*domain.Field
	for _, id := range i.config.FieldIDs() {
		cfg := i.config.Fields[id]
		ds, path := domain.SplitFieldID(id)
		if ds == "" && c.indexLevel[path] {
			continue
		}
		if ds != "" && ds != item.DatasourceID {
			continue
		}
		f := domain.NewField(id, cfg.Type)
		f.RealType = cfg.RealType
		if cfg.Boost != 0 {
			f.Boost = cfg.Boost
		}
		f.Indexed = true
		if known, ok := c.fields[id]; ok {
			f.Label = known.Label
			f.EntityType = known.EntityType
		}
		fields = append(fields, f)
		if _, taken := byPath[path]; taken {
			clashes = append(clashes, map[string]*domain.Field{path: f})
			continue
		}
		byPath[path] = f
	}

	i.extractor.ExtractFields(item.Data, byPath)
	for _, single := range clashes {
		i.extractor.ExtractFields(item.Data, single)
	}

	for _, f := range fields {
		if f.RealType != "" {
			info, custom := i.dataTypes.Custom(f.RealType)
			if custom && i.backend.SupportsFeature("search_api_data_type_"+info.ID) {
				extraction.ConvertValues(f, info)
			} else {
				f.RealType = ""
			}
		}
		item.SetField(f)
	}
}

// Search runs a query through the processor chain and the backend.
func (i *Index) Search(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	if !i.config.Enabled {
		return nil, fmt.Errorf("index %q: %w", i.config.ID, domain.ErrIndexDisabled)
	}
	if err := i.checkServer(); err != nil {
		return nil, err
	}

	run, err := i.begin()
	if err != nil {
		return nil, err
	}
	c := i.snapshot()
	defer i.end(run, c)

	q.IndexID = i.config.ID
	if err := run.advance(domain.PipelinePreprocessingQuery); err != nil {
		return nil, err
	}
	c.chain.PreprocessSearchQuery(q)

	if err := run.advance(domain.PipelineExecuting); err != nil {
		return nil, err
	}
	rs, err := i.backend.Search(ctx, i.config, q)
	if err != nil {
		return nil, fmt.Errorf("search index %q: %w", i.config.ID, err)
	}
	if rs.Query == nil {
		rs.Query = q
	}
	if rs.Extra == nil {
		rs.Extra = make(map[string]any)
	}

	if err := run.advance(domain.PipelinePostprocessingResults); err != nil {
		return nil, err
	}
	c.chain.PostprocessSearchResults(rs, q)

	if err := run.advance(domain.PipelineDone); err != nil {
		return nil, err
	}
	return rs, nil
}

// Reindex marks every tracked item as pending. It does nothing for
// read-only indexes and indexes without a server.
func (i *Index) Reindex(ctx context.Context) error {
	if i.config.ReadOnly || i.server == nil {
		return nil
	}
	if i.tracker == nil {
		return nil
	}
	return i.tracker.TrackAllItemsUpdated(ctx, i.config.ID)
}

// Clear marks every tracked item as pending and deletes all items from the
// backend. It does nothing for read-only indexes and indexes without a server.
func (i *Index) Clear(ctx context.Context) error {
	if i.config.ReadOnly || i.server == nil {
		return nil
	}
	if err := i.Reindex(ctx); err != nil {
		return err
	}
	if err := i.checkServer(); err != nil {
		return err
	}
	return i.backend.DeleteAllItems(ctx, i.config)
}

func stringOption(options map[string]any, key string) []string {
	switch v := options[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
