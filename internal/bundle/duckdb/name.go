package duckdb

// Name is the registry key of this bundle.
const Name = "duckdb"
