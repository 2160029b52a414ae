// Package cli provides the cobra command tree of the searchapi binary.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// version is set by SetVersion from build flags.
var version = "dev"

var verbose bool

// Services wired in by main. Any of them may be nil in a partial setup;
// commands report "not configured" in that case.
var (
	indexService    driving.IndexService
	searchService   driving.SearchService
	serverService   driving.ServerService
	configSync      driving.ConfigSync
	settingsService driving.SettingsService
	watcher         driving.DatasourceWatcher
	scheduler       driving.Scheduler
)

// Services groups the driving ports the commands use.
type Services struct {
	Index     driving.IndexService
	Search    driving.SearchService
	Server    driving.ServerService
	Config    driving.ConfigSync
	Settings  driving.SettingsService
	Watcher   driving.DatasourceWatcher
	Scheduler driving.Scheduler
}

// SetServices installs the services used by all commands.
func SetServices(s Services) {
	indexService = s.Index
	searchService = s.Search
	serverService = s.Server
	configSync = s.Config
	settingsService = s.Settings
	watcher = s.Watcher
	scheduler = s.Scheduler
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "searchapi",
	Short: "Pluggable search indexing",
	Long: `searchapi indexes items from datasources into search servers and
runs queries against them.

Items flow through a configurable chain of processors on their way into
the index and on every search.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
