package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openshelf/catkey/internal/model"
)

// Summary renders the run summary used as the notification body and
// printed at the end of a run: totals plus a per-list breakdown over
// every configured list, including lists that produced nothing.
func Summary(run *model.Run) string {
	acc := run.Results
	var sb strings.Builder

	sb.WriteString("Bestseller Record Key Processing Complete\n")
	sb.WriteString(strings.Repeat("=", 45))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Processing completed: %s\n\n", run.FinishedAt.Format("2006-01-02 15:04:05"))

	sb.WriteString("SUMMARY:\n")
	fmt.Fprintf(&sb, "Total found: %d\n", acc.TotalResolved())
	fmt.Fprintf(&sb, "Total not found: %d\n\n", acc.TotalUnresolved())

	sb.WriteString("PER-LIST BREAKDOWN:\n")
	for _, list := range run.Lists {
		fmt.Fprintf(&sb, "- %s: %d found, %d not found\n",
			DisplayListName(list),
			len(acc.ResolvedKeys(list)),
			acc.UnresolvedCount(list),
		)
	}

	if len(run.Artifacts) > 0 {
		names := make([]string, 0, len(run.Artifacts))
		for name := range run.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString("\nREPORTS ATTACHED:\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "- %s\n", name)
		}
	}

	return sb.String()
}

// Duration formats the run's wall time for logging.
func Duration(run *model.Run) time.Duration {
	return run.FinishedAt.Sub(run.StartedAt)
}
