package domain

import "errors"

// Sentinel error kinds surfaced by the engine. Callers classify failures with
// errors.Is; every wrapped error retains its kind through fmt.Errorf("%w: ...").
var (
	// ErrValidation reports a raw value that fails its catalog schema or
	// bounds check. No pool or state mutation occurs when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrNotFound reports a lookup of an unknown entry id, variable
	// identifier, simulation title or interface name.
	ErrNotFound = errors.New("not found")

	// ErrImportFailure reports a candidate implementation that failed to load
	// during discovery.
	ErrImportFailure = errors.New("import failure")

	// ErrScheduling reports an illegal pipeline operation: resetting a state
	// with external dependents, or executing an interface whose inputs are
	// unsatisfied.
	ErrScheduling = errors.New("scheduling error")

	// ErrSerialization reports a failed structure encode or decode, such as an
	// unknown stored kind on load.
	ErrSerialization = errors.New("serialization error")

	// ErrConnection reports an external source (file, database) that could not
	// be opened or read by an interface.
	ErrConnection = errors.New("connection error")
)
