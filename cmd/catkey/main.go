// Package main provides the entry point for the catkey CLI.
//
// catkey resolves bestseller list ISBNs against a library catalog and
// reports the matching record keys.
//
// Usage:
//
//	catkey run
//	catkey run --lists hardcover-fiction --no-email
//	catkey history
//
// See --help for all available options.
package main

// main is the entry point for catkey.
func main() {
	Execute()
}
