package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openshelf/catkey/internal/model"
)

// FoundWriter renders the resolved-set artifact: one section per source
// list with the record keys comma-joined in resolution order, plus a
// combined line. The key ordering is load-bearing: downstream list
// loaders consume the CSV sequence positionally, so it is never sorted.
type FoundWriter struct {
	output io.Writer

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewFoundWriter creates a FoundWriter targeting output.
func NewFoundWriter(output io.Writer) *FoundWriter {
	return &FoundWriter{output: output, now: time.Now}
}

// Write renders the artifact and returns the bytes written.
func (w *FoundWriter) Write(acc *model.Accumulator) (int, error) {
	var sb strings.Builder

	sb.WriteString("Bestseller Record Keys - Found\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", w.now().Format("2006-01-02 15:04:05"))

	for _, list := range acc.Lists() {
		keys := acc.ResolvedKeys(list)
		fmt.Fprintf(&sb, "%s: %s\n", DisplayListName(list), strings.Join(keys, ","))
		fmt.Fprintf(&sb, "Count: %d\n\n", len(keys))
	}

	fmt.Fprintf(&sb, "All Keys Combined:\n%s\n", strings.Join(acc.AllResolvedKeys(), ","))

	return io.WriteString(w.output, sb.String())
}
