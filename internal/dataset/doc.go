// Package dataset fetches source documents and turns them into virtual files
// that an engine bundle can register. Sources are addressed by URL: http and
// https, s3://bucket/key, file:// and plain filesystem paths. JSON documents may
// be reshaped by a Preprocessor and validated against a JSON schema before
// registration; key order is preserved throughout so that column order follows
// the source document.
package dataset
