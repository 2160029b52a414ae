package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

var errSettingsServiceMissing = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure storage, the default backend, and the scheduler.

Use subcommands to change a single setting or run the interactive wizard.
Changes take effect the next time searchapi starts.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend [memory|bleve]",
	Short: "Set the default backend",
	Long: `Set the backend used by servers that do not name one.

Available backends:
  bleve  - Bleve fulltext index stored in the data directory
  memory - In-memory index, lost on exit`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsBackend,
}

var settingsStorageCmd = &cobra.Command{
	Use:   "storage [sqlite|memory]",
	Short: "Set where tracking state is kept",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsStorage,
}

var settingsLimitCmd = &cobra.Command{
	Use:   "limit [n]",
	Short: "Set the result limit for searches that give none",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsLimit,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsWizardCmd, settingsBackendCmd, settingsStorageCmd, settingsLimitCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsServiceMissing
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	dataDir := settings.DataDir
	if dataDir == "" {
		dataDir = "(default)"
	}

	cmd.Println(title("Storage"))
	cmd.Println(row("Data dir", dataDir))
	cmd.Println(row("Storage", settings.Storage.Description()))
	cmd.Println(row("Backend", settings.DefaultBackend.Description()))
	cmd.Println(row("Verbose", enabledText(settings.Verbose)))
	cmd.Println()

	cmd.Println(title("Search"))
	cmd.Println(row("Default limit", strconv.Itoa(settings.SearchLimit)))
	cmd.Println()

	cmd.Println(title("Scheduler"))
	cmd.Println(row("Enabled", enabledText(settings.Scheduler.Enabled)))
	for _, id := range []string{domain.TaskIDIndexBatch, domain.TaskIDServerTasks} {
		tc := settings.Scheduler.TaskConfigs[id]
		cmd.Println(row(id, fmt.Sprintf("%s every %s", enabledText(tc.Enabled), tc.Interval)))
	}
	return nil
}

func runSettingsBackend(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsServiceMissing
	}
	kind := domain.BackendKind(args[0])
	if !kind.IsValid() {
		return fmt.Errorf("invalid backend: %s", args[0])
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings.DefaultBackend = kind
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Default backend set to: %s\n", kind.Description())
	return nil
}

func runSettingsStorage(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsServiceMissing
	}
	kind := domain.StorageKind(args[0])
	if !kind.IsValid() {
		return fmt.Errorf("invalid storage: %s", args[0])
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings.Storage = kind
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Storage set to: %s\n", kind.Description())
	return nil
}

func runSettingsLimit(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsServiceMissing
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid limit: %s", args[0])
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings.SearchLimit = n
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Default search limit set to: %d\n", n)
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsServiceMissing
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(title("searchapi settings wizard"))
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Storage
	cmd.Println("Step 1: Where should tracking state be kept?")
	storages := []domain.StorageKind{domain.StorageSQLite, domain.StorageMemory}
	for i, s := range storages {
		cmd.Printf("  %d. %s\n", i+1, s.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	settings.Storage = storages[parseChoice(readLine(reader), len(storages), 1)-1]
	cmd.Println()

	// Step 2: Backend
	cmd.Println("Step 2: Which backend should new servers use?")
	backends := []domain.BackendKind{domain.BackendBleve, domain.BackendMemory}
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	settings.DefaultBackend = backends[parseChoice(readLine(reader), len(backends), 1)-1]
	cmd.Println()

	// Step 3: Scheduler
	cmd.Print("Step 3: Index pending items in the background? [Y/n]: ")
	settings.Scheduler.Enabled = parseYesNo(readLine(reader), true)
	if settings.Scheduler.Enabled {
		tc := settings.Scheduler.TaskConfigs[domain.TaskIDIndexBatch]
		cmd.Printf("Batch interval [%s]: ", tc.Interval)
		if d, err := time.ParseDuration(readLine(reader)); err == nil && d > 0 {
			tc.Interval = d
		}
		settings.Scheduler.TaskConfigs[domain.TaskIDIndexBatch] = tc
	}
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println(successStyle.Render("Settings saved."))
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func parseYesNo(input string, defaultVal bool) bool {
	switch strings.ToLower(input) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return defaultVal
}
