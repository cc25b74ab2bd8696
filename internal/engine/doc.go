// Package engine manages embedded analytical engine sessions. A Session owns
// one engine instance opened by the selected bundle and a worker goroutine
// that performs every operation on it, so callers never touch the engine
// directly: initialization, dataset registration and queries are messages to
// the worker, which serializes them. Each query runs on its own connection
// that is closed before the caller gets the result. Sessions must be released
// with Close; the Manager tracks live sessions and closes them on shutdown.
package engine
