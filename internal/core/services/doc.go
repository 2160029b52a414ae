// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Index is the aggregate root of one search index; IndexManager owns
// all indexes and servers and drives tracker-based batch indexing.
//
// Services are pure Go with no CGO.
package services
