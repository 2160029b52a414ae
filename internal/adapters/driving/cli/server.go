package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

var errServerServiceMissing = errors.New("server service not configured")

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage search servers",
	Long: `Servers are backend instances that indexes store their items on.
Operations on a disabled server are queued and replayed once it is enabled.`,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all servers",
	Args:  cobra.NoArgs,
	RunE:  runServerList,
}

var serverSaveCmd = &cobra.Command{
	Use:   "save [server-id]",
	Short: "Create or update a server",
	Long: `Create or update a server. Changing the backend moves every index on
the server to the new backend and schedules their items for reindexing.

Example:
  searchapi server save default --backend bleve --option features=search_api_data_type_location`,
	Args: cobra.ExactArgs(1),
	RunE: runServerSave,
}

var serverTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Replay queued server tasks",
	Args:  cobra.NoArgs,
	RunE:  runServerTasks,
}

var (
	serverName     string
	serverBackend  string
	serverDisabled bool
	serverOptions  []string
)

func init() {
	f := serverSaveCmd.Flags()
	f.StringVar(&serverName, "name", "", "human-readable name (defaults to the id)")
	f.StringVarP(&serverBackend, "backend", "b", "", "backend: memory or bleve (defaults to the configured backend)")
	f.BoolVar(&serverDisabled, "disabled", false, "save the server disabled")
	f.StringArrayVarP(&serverOptions, "option", "o", nil, "backend option as key=value (repeatable)")

	serverCmd.AddCommand(serverListCmd, serverSaveCmd, serverTasksCmd)
	rootCmd.AddCommand(serverCmd)
}

func runServerList(cmd *cobra.Command, _ []string) error {
	if serverService == nil {
		return errServerServiceMissing
	}

	servers, err := serverService.Servers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	if len(servers) == 0 {
		cmd.Println("No servers configured.")
		return nil
	}

	cmd.Println(title("Servers"))
	for _, s := range servers {
		cmd.Printf("  %-16s %-24s %-8s enabled=%s\n", s.ID, s.Name, s.Backend, enabledText(s.Enabled))
	}
	return nil
}

func runServerSave(cmd *cobra.Command, args []string) error {
	if serverService == nil {
		return errServerServiceMissing
	}

	backend := domain.BackendKind(serverBackend)
	if backend == "" {
		backend = defaultBackend()
	}
	name := serverName
	if name == "" {
		name = args[0]
	}

	server := domain.Server{
		ID:      args[0],
		Name:    name,
		Backend: backend,
		Enabled: !serverDisabled,
		Options: make(map[string]any),
	}
	for _, spec := range serverOptions {
		key, value, err := parseOptionFlag(spec)
		if err != nil {
			return err
		}
		server.Options[key] = value
	}

	if err := serverService.SaveServer(cmd.Context(), server); err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}
	cmd.Printf("Server %s saved (%s).\n", server.ID, server.Backend.Description())
	return nil
}

func runServerTasks(cmd *cobra.Command, _ []string) error {
	if serverService == nil {
		return errServerServiceMissing
	}
	n, err := serverService.ExecuteServerTasks(cmd.Context())
	cmd.Printf("Replayed %d server tasks.\n", n)
	if err != nil {
		cmd.Println(errorStyle.Render("Some tasks failed and stay queued."))
		return fmt.Errorf("replaying server tasks: %w", err)
	}
	return nil
}

// defaultBackend returns the configured default backend, or bleve when no
// settings are available.
func defaultBackend() domain.BackendKind {
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil && s.DefaultBackend.IsValid() {
			return s.DefaultBackend
		}
	}
	return domain.DefaultAppSettings().DefaultBackend
}
