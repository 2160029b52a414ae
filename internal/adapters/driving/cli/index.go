package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

var errIndexServiceMissing = errors.New("index service not configured")

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage search indexes",
	Long: `Create, inspect, and maintain search indexes.

An index reads items from one or more datasources, extracts the configured
fields, runs them through its processors, and stores them on a server.`,
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all indexes",
	Args:  cobra.NoArgs,
	RunE:  runIndexList,
}

var indexShowCmd = &cobra.Command{
	Use:   "show [index-id]",
	Short: "Show an index configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexShow,
}

var indexCreateCmd = &cobra.Command{
	Use:   "create [index-id]",
	Short: "Create an index",
	Long: `Create an index and start tracking the items of its datasources.

Fields are given as id=type or id=type:boost, where the id combines the
datasource and the property path, for example node|title=text:5.
Options are key=value pairs such as cron_limit=100 or index_directly=false.

Example:
  searchapi index create articles --server default --datasource node \
    --field node|title=text:5 --field node|body=text \
    --processor ignorecase --processor stopwords`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexCreate,
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete [index-id]",
	Short: "Delete an index and its stored items",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexDelete,
}

var indexEnableCmd = &cobra.Command{
	Use:   "enable [index-id]",
	Short: "Enable an index and start tracking its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setIndexEnabled(cmd, args[0], true)
	},
}

var indexDisableCmd = &cobra.Command{
	Use:   "disable [index-id]",
	Short: "Disable an index and stop tracking its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setIndexEnabled(cmd, args[0], false)
	},
}

var indexBatchCmd = &cobra.Command{
	Use:   "batch [index-id]",
	Short: "Index pending items",
	Long: `Index one batch of pending items. Without an index id, one batch
runs for every enabled index. A limit of 0 uses each index's cron_limit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndexBatch,
}

var indexReindexCmd = &cobra.Command{
	Use:   "reindex [index-id]",
	Short: "Mark all items for reindexing",
	Long:  `Mark every item of the index as pending. Stored items stay searchable until they are replaced.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexReindex,
}

var indexClearCmd = &cobra.Command{
	Use:   "clear [index-id]",
	Short: "Remove all stored items and mark them for reindexing",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexClear,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status [index-id]",
	Short: "Show indexing progress",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndexStatus,
}

var indexFieldsCmd = &cobra.Command{
	Use:   "fields [index-id]",
	Short: "List the fields an index offers",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexFields,
}

var indexProcessorsCmd = &cobra.Command{
	Use:   "processors [index-id]",
	Short: "List enabled processors in execution order",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexProcessors,
}

var (
	createName        string
	createDescription string
	createServer      string
	createDatasources []string
	createFields      []string
	createProcessors  []string
	createOptions     []string
	createReadOnly    bool
	createDisabled    bool

	batchLimit int

	fieldsIndexed    bool
	fieldsAdditional bool

	processorsStage string
)

func init() {
	f := indexCreateCmd.Flags()
	f.StringVar(&createName, "name", "", "human-readable name (defaults to the id)")
	f.StringVar(&createDescription, "description", "", "index description")
	f.StringVarP(&createServer, "server", "s", "", "server to store items on")
	f.StringArrayVarP(&createDatasources, "datasource", "d", nil, "datasource id (repeatable)")
	f.StringArrayVarP(&createFields, "field", "f", nil, "field as id=type[:boost] (repeatable)")
	f.StringArrayVarP(&createProcessors, "processor", "p", nil, "processor to enable (repeatable)")
	f.StringArrayVarP(&createOptions, "option", "o", nil, "index option as key=value (repeatable)")
	f.BoolVar(&createReadOnly, "read-only", false, "never write to the server")
	f.BoolVar(&createDisabled, "disabled", false, "create the index disabled")

	indexBatchCmd.Flags().IntVarP(&batchLimit, "limit", "n", 0, "maximum items per index (0 = cron_limit)")

	indexFieldsCmd.Flags().BoolVar(&fieldsIndexed, "indexed", false, "only list configured fields")
	indexFieldsCmd.Flags().BoolVar(&fieldsAdditional, "additional", false, "list expandable complex properties instead")

	indexProcessorsCmd.Flags().StringVar(&processorsStage, "stage", string(domain.StagePreprocessIndex),
		"stage: preprocess_index, preprocess_query or postprocess_query")

	indexCmd.AddCommand(indexListCmd, indexShowCmd, indexCreateCmd, indexDeleteCmd,
		indexEnableCmd, indexDisableCmd, indexBatchCmd, indexReindexCmd, indexClearCmd,
		indexStatusCmd, indexFieldsCmd, indexProcessorsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexList(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	configs, err := indexService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	if len(configs) == 0 {
		cmd.Println("No indexes configured.")
		return nil
	}

	cmd.Println(title("Indexes"))
	for _, cfg := range configs {
		state := enabledText(cfg.Enabled)
		if cfg.ReadOnly {
			state += mutedStyle.Render(" (read-only)")
		}
		cmd.Printf("  %-20s %-24s server=%-12s enabled=%s\n", cfg.ID, cfg.Name, cfg.ServerID, state)
	}
	return nil
}

func runIndexShow(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	cfg, err := indexService.Config(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get index: %w", err)
	}

	cmd.Println(title("Index " + cfg.ID))
	cmd.Println(row("Name", cfg.Name))
	if cfg.Description != "" {
		cmd.Println(row("Description", cfg.Description))
	}
	cmd.Println(row("Server", cfg.ServerID))
	cmd.Println(row("Datasources", strings.Join(cfg.DatasourceIDs, ", ")))
	cmd.Println(row("Enabled", enabledText(cfg.Enabled)))
	cmd.Println(row("Read-only", enabledText(cfg.ReadOnly)))
	cmd.Println(row("Cron limit", cfg.CronLimit()))

	cmd.Println()
	cmd.Println(title("Fields"))
	for _, id := range cfg.FieldIDs() {
		fc := cfg.Fields[id]
		line := fmt.Sprintf("  %-32s %s", id, fc.Type)
		if fc.Boost != 0 && fc.Boost != domain.DefaultBoost {
			line += fmt.Sprintf(" boost=%g", fc.Boost)
		}
		cmd.Println(line)
	}

	cmd.Println()
	cmd.Println(title("Processors"))
	names := make([]string, 0, len(cfg.Processors))
	for name, ps := range cfg.Processors {
		if ps.Status {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		cmd.Println(mutedStyle.Render("  none"))
	}
	for _, name := range names {
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	name := createName
	if name == "" {
		name = args[0]
	}
	cfg := domain.NewIndexConfig(args[0], name, createServer, createDatasources...)
	cfg.Description = createDescription
	cfg.ReadOnly = createReadOnly
	cfg.Enabled = !createDisabled

	for _, spec := range createFields {
		id, fc, err := parseFieldFlag(spec)
		if err != nil {
			return err
		}
		cfg.Fields[id] = fc
	}
	for _, p := range createProcessors {
		cfg.Processors[p] = domain.ProcessorSettings{Status: true}
	}
	for _, spec := range createOptions {
		key, value, err := parseOptionFlag(spec)
		if err != nil {
			return err
		}
		cfg.Options[key] = value
	}

	if err := indexService.Create(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	cmd.Printf("Index %s created.\n", cfg.ID)
	return nil
}

func runIndexDelete(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}
	if err := indexService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	cmd.Printf("Index %s deleted.\n", args[0])
	return nil
}

func setIndexEnabled(cmd *cobra.Command, indexID string, enabled bool) error {
	if indexService == nil {
		return errIndexServiceMissing
	}
	cfg, err := indexService.Config(cmd.Context(), indexID)
	if err != nil {
		return fmt.Errorf("failed to get index: %w", err)
	}
	cfg.Enabled = enabled
	if err := indexService.Update(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Index %s %s.\n", indexID, state)
	return nil
}

func runIndexBatch(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	if len(args) == 0 {
		n, err := indexService.IndexAll(cmd.Context(), batchLimit)
		cmd.Printf("Indexed %d items.\n", n)
		if err != nil {
			return fmt.Errorf("batch indexing failed: %w", err)
		}
		return nil
	}

	n, err := indexService.IndexBatch(cmd.Context(), args[0], batchLimit)
	if err != nil {
		return fmt.Errorf("batch indexing failed: %w", err)
	}
	cmd.Printf("Indexed %d items of %s.\n", n, args[0])
	return nil
}

func runIndexReindex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}
	if err := indexService.Reindex(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to schedule reindex: %w", err)
	}
	cmd.Printf("All items of %s are scheduled for reindexing.\n", args[0])
	return nil
}

func runIndexClear(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}
	if err := indexService.Clear(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	cmd.Printf("Index %s cleared.\n", args[0])
	return nil
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	ids := args
	if len(ids) == 0 {
		configs, err := indexService.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list indexes: %w", err)
		}
		for _, cfg := range configs {
			ids = append(ids, cfg.ID)
		}
	}

	for _, id := range ids {
		st, err := indexService.Status(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get status of %s: %w", id, err)
		}
		cmd.Printf("%-20s %s %d/%d indexed, %d pending\n",
			id, progressBar(st.Progress(), 20), st.Indexed, st.Total, st.Pending())
	}
	return nil
}

func runIndexFields(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	if fieldsAdditional {
		additional, err := indexService.AdditionalFields(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list additional fields: %w", err)
		}
		for _, path := range sortedKeys(additional) {
			cmd.Printf("  %-32s %s\n", path, additional[path])
		}
		return nil
	}

	fields, err := indexService.Fields(cmd.Context(), args[0], fieldsIndexed)
	if err != nil {
		return fmt.Errorf("failed to list fields: %w", err)
	}
	for _, id := range sortedKeys(fields) {
		f := fields[id]
		mark := " "
		if f.Indexed {
			mark = successStyle.Render("*")
		}
		cmd.Printf("%s %-32s %-16s %s\n", mark, id, f.Type, mutedStyle.Render(f.Label))
	}
	return nil
}

func runIndexProcessors(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errIndexServiceMissing
	}

	stage := domain.Stage(processorsStage)
	if !stage.IsValid() {
		return fmt.Errorf("invalid stage %q", processorsStage)
	}
	procs, err := indexService.Processors(cmd.Context(), args[0], stage)
	if err != nil {
		return fmt.Errorf("failed to list processors: %w", err)
	}
	if len(procs) == 0 {
		cmd.Println("No processors run at this stage.")
		return nil
	}
	for i, p := range procs {
		cmd.Printf("  %d. %-20s %s\n", i+1, p.ID(), mutedStyle.Render(p.Label()))
	}
	return nil
}

// parseFieldFlag parses id=type or id=type:boost.
func parseFieldFlag(spec string) (string, domain.FieldConfig, error) {
	id, rest, ok := strings.Cut(spec, "=")
	if !ok || id == "" || rest == "" {
		return "", domain.FieldConfig{}, fmt.Errorf("invalid field %q: expected id=type[:boost]", spec)
	}
	fc := domain.FieldConfig{Type: rest, Boost: domain.DefaultBoost}
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		boost, err := strconv.ParseFloat(rest[i+1:], 64)
		if err != nil {
			return "", domain.FieldConfig{}, fmt.Errorf("invalid boost in field %q: %w", spec, err)
		}
		fc.Type = rest[:i]
		fc.Boost = boost
	}
	return id, fc, nil
}

// parseOptionFlag parses key=value, converting numbers and booleans.
func parseOptionFlag(spec string) (string, any, error) {
	key, raw, ok := strings.Cut(spec, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid option %q: expected key=value", spec)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return key, n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return key, f, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return key, b, nil
	}
	return key, raw, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
