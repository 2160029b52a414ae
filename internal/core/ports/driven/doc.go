// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Datasource: Loads items and describes their properties
//   - Backend: Stores and searches processed items
//   - Tracker: Records which items still need indexing
//   - IndexStore: Index configuration persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ServerTaskStore: Without it, operations on disabled servers are dropped.
//   - SchedulerStore: Without it, scheduler state is not persisted.
//   - ChangeNotifier: Implemented by datasources that push item changes.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or processor package
package driven
