// Package output persists capture reports: a JSON element dump and a
// Markdown prompt file per session.
package output

import (
	"context"
	"element-scout/internal/config"
	"element-scout/internal/entity"
	"element-scout/internal/prompt"
	"element-scout/pkg/apperr"
	"element-scout/pkg/logg"
	"element-scout/pkg/tracing"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	writerName   = "ResultWriter"
	writerTracer = "output.writer"

	dirPerm  = 0755
	filePerm = 0644
)

type Writer struct {
	config *config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewWriter(params Params) *Writer {
	return &Writer{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, writerName)),
		tracer: otel.Tracer(writerTracer),
	}
}

// WriteResults writes the element dump and the prompt file side by
// side. File names carry the short session id so sequential sessions
// never clobber each other.
func (w *Writer) WriteResults(ctx context.Context, report *entity.CaptureReport) (paths []string, err error) {
	const op = "WriteResults"
	logger := w.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.SessionID, report.SessionID.String()),
	)

	ctx, step := tracing.StartSpan(ctx, w.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	dir := w.config.OutputConfig.Dir
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageOutput,
			apperr.MetaPath:   dir,
		})
	}

	shortID := strings.Split(report.SessionID.String(), "-")[0]
	resultsPath := filepath.Join(dir, fmt.Sprintf("elements_%s.json", shortID))
	promptsPath := filepath.Join(dir, fmt.Sprintf("prompts_%s.md", shortID))

	step.AddEvent("writing result files")

	var g errgroup.Group
	g.Go(func() error {
		return writeJSON(resultsPath, report)
	})
	g.Go(func() error {
		return writePrompts(promptsPath, report)
	})

	if err := g.Wait(); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "write_failed",
			apperr.MetaStage:  apperr.StageOutput,
		})
	}

	logger.Info("Results written",
		zap.String("results", resultsPath),
		zap.String("prompts", promptsPath),
		zap.Int("records", len(report.Records)),
	)

	return []string{resultsPath, promptsPath}, nil
}

func writeJSON(path string, report *entity.CaptureReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func writePrompts(path string, report *entity.CaptureReport) error {
	doc := prompt.Document(report)
	if err := os.WriteFile(path, []byte(doc), filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
