// Package database persists run history and per-ISBN resolution
// outcomes in SQLite. Stored resolutions serve as a lookup cache so
// repeat ISBNs can skip the catalog search.
package database
