// Package model defines the core data types shared across catkey:
// bestseller candidates, resolution outcomes, and the per-run accumulator.
//
// Types in this package carry no behavior beyond validation and
// accumulation. Network access, browser automation, and persistence live
// in their own packages and depend on model, never the reverse.
package model
