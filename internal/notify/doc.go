// Package notify delivers run completion notifications by email,
// attaching the exported artifacts.
package notify
