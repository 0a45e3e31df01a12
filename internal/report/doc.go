// Package report renders and exports run artifacts: the found record
// key text report, the not-found CSV, the optional Markdown summary,
// and the plaintext run summary used as the notification body.
package report
