package report

import (
	"encoding/csv"
	"io"

	"github.com/openshelf/catkey/internal/model"
)

// notFoundHeader is the fixed column set of the unresolved artifact.
var notFoundHeader = []string{"list", "isbn", "title", "author"}

// NotFoundWriter renders the unresolved-set artifact as CSV, one row
// per unresolved candidate in encounter order.
type NotFoundWriter struct {
	output io.Writer
}

// NewNotFoundWriter creates a NotFoundWriter targeting output.
func NewNotFoundWriter(output io.Writer) *NotFoundWriter {
	return &NotFoundWriter{output: output}
}

// Write renders the CSV including its header row.
func (w *NotFoundWriter) Write(acc *model.Accumulator) error {
	cw := csv.NewWriter(w.output)
	if err := cw.Write(notFoundHeader); err != nil {
		return err
	}
	for _, row := range acc.Unresolved() {
		if err := cw.Write([]string{row.List, row.ISBN, row.Title, row.Author}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
