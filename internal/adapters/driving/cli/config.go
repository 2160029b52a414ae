package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errConfigSyncMissing = errors.New("config sync not configured")

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Synchronise configuration files",
	Long: `Index and server configurations can be kept as TOML files in the
indexes/ and servers/ directories of the config directory. Import applies
the files, export writes the active configuration back to them.`,
}

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply configuration files",
	Args:  cobra.NoArgs,
	RunE:  runConfigImport,
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the active configuration to files",
	Args:  cobra.NoArgs,
	RunE:  runConfigExport,
}

func init() {
	configCmd.AddCommand(configImportCmd, configExportCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigImport(cmd *cobra.Command, _ []string) error {
	if configSync == nil {
		return errConfigSyncMissing
	}
	n, err := configSync.Import(cmd.Context())
	cmd.Printf("Imported %d changed configurations.\n", n)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func runConfigExport(cmd *cobra.Command, _ []string) error {
	if configSync == nil {
		return errConfigSyncMissing
	}
	n, err := configSync.Export(cmd.Context())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	cmd.Printf("Exported %d configurations.\n", n)
	return nil
}
