package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/openshelf/catkey/internal/model"
)

// MarkdownWriter renders the run summary as GitHub-flavored Markdown,
// suitable for posting to a wiki or pasting into an issue. It is an
// optional artifact alongside the canonical TXT/CSV exports.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter targeting output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the Markdown summary.
func (w *MarkdownWriter) Write(run *model.Run) error {
	acc := run.Results
	md := markdown.NewMarkdown(w.output)

	md.H1("Bestseller Record Key Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Completed", run.FinishedAt.Format("2006-01-02 15:04:05")},
			{"Found", strconv.Itoa(acc.TotalResolved())},
			{"Not Found", strconv.Itoa(acc.TotalUnresolved())},
		},
	})
	md.PlainText("")

	md.H2("Found Keys by List")
	md.PlainText("")
	if len(acc.Lists()) == 0 {
		md.PlainText("No records resolved.")
		md.PlainText("")
	} else {
		rows := make([][]string, 0, len(acc.Lists()))
		for _, list := range acc.Lists() {
			keys := acc.ResolvedKeys(list)
			rows = append(rows, []string{
				DisplayListName(list),
				strconv.Itoa(len(keys)),
				"`" + strings.Join(keys, ",") + "`",
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"List", "Count", "Keys"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if unresolved := acc.Unresolved(); len(unresolved) > 0 {
		md.H2("Not Found")
		md.PlainText("")
		rows := make([][]string, 0, len(unresolved))
		for _, row := range unresolved {
			rows = append(rows, []string{DisplayListName(row.List), row.ISBN, row.Title, row.Author})
		}
		md.Table(markdown.TableSet{
			Header: []string{"List", "ISBN", "Title", "Author"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}
