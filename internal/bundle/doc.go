// Package bundle defines the engine runtime variants a session can be built
// on, and the registry that picks one at initialization time. Each bundle
// opens an embedded SQL engine and knows how to make a virtual file visible to
// it under a logical name, so that a query like SELECT * FROM 'res.json'
// works the same on every variant.
package bundle
