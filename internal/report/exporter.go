package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openshelf/catkey/internal/model"
)

// Exporter writes run artifacts to the output directory with
// timestamped filenames and records them on the run for notification
// attachment. A failure to write any single artifact is logged and that
// artifact omitted; the run continues with whatever was written.
type Exporter struct {
	outputDir string
	markdown  bool
	logger    *slog.Logger

	// now is injectable for deterministic filenames in tests.
	now func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithMarkdownSummary additionally writes a Markdown summary artifact.
func WithMarkdownSummary(enabled bool) ExporterOption {
	return func(e *Exporter) {
		e.markdown = enabled
	}
}

// WithExportLogger sets a custom logger.
func WithExportLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an Exporter targeting outputDir.
func NewExporter(outputDir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		outputDir: outputDir,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the artifacts for run and fills run.Artifacts with
// delivered-filename to path entries. An empty resolved set skips the
// found artifact, and an empty unresolved set skips the CSV, matching
// the rule that empty artifacts are omitted rather than attached.
func (e *Exporter) Export(run *model.Run) error {
	if err := os.MkdirAll(e.outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ts := e.now().Format("2006-01-02_150405")
	acc := run.Results

	if acc.TotalResolved() > 0 {
		name := fmt.Sprintf("Bestsellers_Found_%s.txt", ts)
		if path, err := e.writeArtifact(name, func(f *os.File) error {
			_, err := NewFoundWriter(f).Write(acc)
			return err
		}); err != nil {
			e.logger.Error("failed to write found artifact", "file", name, "error", err)
		} else {
			run.Artifacts[name] = path
		}
	}

	if acc.TotalUnresolved() > 0 {
		name := fmt.Sprintf("Bestsellers_NotFound_%s.csv", ts)
		if path, err := e.writeArtifact(name, func(f *os.File) error {
			return NewNotFoundWriter(f).Write(acc)
		}); err != nil {
			e.logger.Error("failed to write not-found artifact", "file", name, "error", err)
		} else {
			run.Artifacts[name] = path
		}
	}

	if e.markdown {
		name := fmt.Sprintf("Bestsellers_Summary_%s.md", ts)
		if path, err := e.writeArtifact(name, func(f *os.File) error {
			return NewMarkdownWriter(f).Write(run)
		}); err != nil {
			e.logger.Error("failed to write markdown summary", "file", name, "error", err)
		} else {
			run.Artifacts[name] = path
		}
	}

	return nil
}

// writeArtifact creates the named file in the output directory and
// hands it to write. The file is removed on write failure so partial
// artifacts are never attached.
func (e *Exporter) writeArtifact(name string, write func(*os.File) error) (string, error) {
	path := filepath.Join(e.outputDir, name)
	f, err := os.Create(path) //nolint:gosec // Path is built from config-owned dir
	if err != nil {
		return "", err
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	e.logger.Info("artifact written", "path", path)
	return path, nil
}
