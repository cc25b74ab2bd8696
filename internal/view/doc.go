// Package view implements the query table view: a component that mounts an
// engine session for a dataset profile, runs queries against it and exposes
// an immutable snapshot of what to render. State changes are published on a
// Broker and executed queries are written to a history store.
package view
