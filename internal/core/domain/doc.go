// Package domain defines the core business entities of the search framework.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Field: a typed, multi-valued datum extracted from an item
//   - Item: a content item with its typed property tree
//   - IndexConfig: fields, processors, and options of one index
//   - Query and ResultSet: a search request and its outcome
//   - Stage: the fixed points where processors run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
