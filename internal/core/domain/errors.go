package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Index precondition errors. These abort a whole index or search call.

	// ErrIndexDisabled indicates an operation on a disabled index.
	ErrIndexDisabled = errors.New("index is disabled")

	// ErrNoFieldsConfigured indicates an index without any configured fields.
	ErrNoFieldsConfigured = errors.New("no fields configured")

	// ErrNoServer indicates the index has no server attached.
	ErrNoServer = errors.New("no server attached")

	// Configuration errors. These are usually logged and skipped.

	// ErrUnknownServer indicates an index references a server that does not exist.
	ErrUnknownServer = errors.New("unknown server")

	// ErrUnknownProcessor indicates a processor id with no registered definition.
	ErrUnknownProcessor = errors.New("unknown processor")

	// ErrUnknownDatasource indicates a datasource id that is not registered.
	ErrUnknownDatasource = errors.New("unknown datasource")

	// ErrUnknownBackend indicates a server references a backend kind that is not registered.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrServerDisabled indicates the server cannot currently accept calls.
	ErrServerDisabled = errors.New("server is disabled")

	// ErrTaskRunning indicates a scheduled task that is already in flight.
	ErrTaskRunning = errors.New("task already running")

	// ErrReentrantPipeline indicates a pipeline stage was entered twice in one run.
	ErrReentrantPipeline = errors.New("pipeline stage re-entered")
)
