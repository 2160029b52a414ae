// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: application settings in config.toml
//   - IndexStore: one TOML file per index under indexes/
//   - ServerStore: one TOML file per server under servers/
package file
