package query

import "errors"

// Error taxonomy surfaced to the service layer. Callers distinguish these
// with errors.Is and map them to different external status codes.
var (
	// ErrGeneNotFound: the requested gene name is absent from the region
	// table. A per-query failure, never retried.
	ErrGeneNotFound = errors.New("gene not found")

	// ErrCacheUnavailable: the pre-built region cache is missing or failed
	// to load. Gene-dependent queries fail until an operator rebuilds it.
	ErrCacheUnavailable = errors.New("region cache unavailable")

	// ErrFlankMismatch: the requested flank lengths differ from the ones the
	// cache was built with. The cache must be regenerated; flanks are never
	// silently re-derived.
	ErrFlankMismatch = errors.New("flank lengths differ from cached region table")
)
