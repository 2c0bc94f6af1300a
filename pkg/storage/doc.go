// Package storage implements the hybrid session-storage subsystem.
//
// A HybridStore routes key-value operations between a Redis backend and an
// in-process fallback map based on a debounced availability signal produced
// by a background health Monitor. A Supervisor optionally manages the
// lifecycle of a local redis-server process. When the backend is down the
// store degrades silently: callers never see an error, only best-effort
// volatile persistence.
package storage
