// Package main provides the entry point for the searchapi CLI.
package main

import (
	"os"

	"github.com/custodia-labs/searchapi/internal/adapters/driving/cli"
	"github.com/custodia-labs/searchapi/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)

	app, err := newApp(configDir())
	if err != nil {
		logger.Error("startup failed: %v", err)
		os.Exit(1)
	}

	cli.SetServices(app.services())
	err = cli.Execute()
	if cerr := app.Close(); cerr != nil {
		logger.Warn("shutdown: %v", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// configDir returns $SEARCHAPI_HOME, or empty for the default location.
func configDir() string {
	return os.Getenv("SEARCHAPI_HOME")
}
