package usecase

import (
	"context"
	"element-scout/internal/collector"
	"element-scout/internal/config"
	"element-scout/internal/entity"
	"element-scout/internal/filter"
	"element-scout/internal/fuser"
	"element-scout/internal/ports"
	"element-scout/internal/recorder"
	"element-scout/pkg/apperr"
	"element-scout/pkg/logg"
	"element-scout/pkg/tracing"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	captureServiceName = "CaptureService"
	captureTracer      = "usecase.capture"

	stopTimeout = 30 * time.Second
)

// CaptureService runs one capture session at a time: it arms the click
// hook, ingests payloads from the pointer and scan producers, and seals
// the session into a written report on stop.
type CaptureService struct {
	config  *config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
	browser ports.BrowserManager
	source  ports.MetadataSource
	writer  ports.ResultWriter

	mu      sync.Mutex
	session *captureSession
}

// captureSession is fully built before it is published, so producers
// only ever see a complete session.
type captureSession struct {
	id          uuid.UUID
	targetURL   string
	filters     []entity.FilterExpression
	collector   *collector.Collector
	fuser       *fuser.Fuser
	idle        *time.Timer
	idleTimeout time.Duration
	startedAt   time.Time
	ctx         context.Context
	cancel      context.CancelFunc
}

// touch pushes the idle watchdog back on any producer activity.
func (sess *captureSession) touch() {
	if sess.idle != nil {
		sess.idle.Reset(sess.idleTimeout)
	}
}

type CaptureServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Browser ports.BrowserManager
	Source  ports.MetadataSource
	Writer  ports.ResultWriter
}

func NewCaptureService(params CaptureServiceParams) *CaptureService {
	return &CaptureService{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, captureServiceName)),
		tracer:  otel.Tracer(captureTracer),
		browser: params.Browser,
		source:  params.Source,
		writer:  params.Writer,
	}
}

func (s *CaptureService) Start(ctx context.Context, targetURL string) (err error) {
	const op = "Start"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, targetURL))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("url", targetURL))
	defer func() {
		step.End(err)
	}()

	if targetURL == "" {
		return apperr.InvalidReqError(op, "target_url", errors.New("target url cannot be empty"))
	}

	if !s.browser.IsReady() {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if s.Active() {
		return apperr.WrapErrorWithReason(op, apperr.CodeSessionActive, "session_already_active")
	}

	filters, err := filter.ParseSet(s.config.CaptureConfig.Filters)
	if err != nil {
		return err
	}

	step.AddEvent("navigating to target")

	if err := s.browser.Navigate(ctx, targetURL); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	sess := &captureSession{
		id:          uuid.New(),
		targetURL:   targetURL,
		filters:     filters,
		collector:   collector.New(),
		idleTimeout: s.config.CaptureConfig.IdleTimeout,
		startedAt:   time.Now().UTC(),
		ctx:         sessionCtx,
		cancel:      cancel,
	}
	sess.fuser = fuser.New(s.source, sess.collector, s.logger)
	if sess.idleTimeout > 0 {
		sess.idle = time.AfterFunc(sess.idleTimeout, s.idleStop)
	}

	s.mu.Lock()
	if s.session != nil {
		s.mu.Unlock()
		sess.teardown()

		return apperr.WrapErrorWithReason(op, apperr.CodeSessionActive, "session_already_active")
	}
	s.session = sess
	s.mu.Unlock()

	step.AddEvent("arming capture hook")

	if err := s.browser.StartCapture(ctx, s.handleCapture); err != nil {
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
		sess.teardown()

		return err
	}

	logger.Info("Capture session started",
		zap.String(logg.SessionID, sess.id.String()),
		zap.Int("filters", len(filters)),
	)
	fmt.Printf("\n🎯 Capturing on %s. Click elements in the browser, 'stop' writes the results\n", targetURL)

	return nil
}

func (sess *captureSession) teardown() {
	if sess.idle != nil {
		sess.idle.Stop()
	}
	sess.collector.Close()
	sess.cancel()
}

// handleCapture receives pointer payloads from the browser hook. It
// runs on the driver's dispatch goroutine, so it only does channel work
// and returns quickly.
func (s *CaptureService) handleCapture(payload map[string]any, topFrame bool) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return
	}

	pageURL := sess.targetURL
	if url, err := s.browser.PageURL(sess.ctx); err == nil && url != "" {
		pageURL = url
	}

	if added, rec := s.ingest(sess, payload, !topFrame, entity.SourcePointer, pageURL); added {
		fmt.Printf("📍 %s\n", rec.CSSSelector)
	}
}

// ingest runs one payload through the full pipeline: record building,
// stamping, filtering, deduplication and enrichment scheduling.
func (s *CaptureService) ingest(
	sess *captureSession,
	payload map[string]any,
	crossFrame bool,
	source entity.CaptureSource,
	pageURL string,
) (bool, *entity.ElementRecord) {
	sess.touch()

	rec := recorder.FromPayload(payload)
	if rec == nil {
		return false, nil
	}

	rec.Source = source
	if crossFrame {
		rec.CrossOriginFrame = true
	}
	rec.PageURL = pageURL
	rec.CaptureTimestamp = time.Now().UTC()

	if !filter.Matches(rec, sess.filters) {
		return false, nil
	}

	if !sess.collector.Accept(rec) {
		return false, nil
	}

	if s.config.CaptureConfig.Enrich && rec.CSSSelector != "" {
		sess.fuser.Enrich(sess.ctx, collector.IdentityKey(rec), rec.CSSSelector)
	}

	s.logger.Debug("Element recorded",
		zap.String(logg.Source, string(source)),
		zap.String(logg.Selector, rec.CSSSelector))

	return true, rec
}

func (s *CaptureService) ScanAll(ctx context.Context) (int, error) {
	return s.scan(ctx, "ScanAll", false, entity.SourceScan)
}

func (s *CaptureService) ScanHidden(ctx context.Context) (int, error) {
	return s.scan(ctx, "ScanHidden", true, entity.SourceHiddenScan)
}

func (s *CaptureService) scan(ctx context.Context, op string, hidden bool, source entity.CaptureSource) (added int, err error) {
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.Bool("hidden", hidden))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return 0, apperr.WrapErrorWithReason(op, apperr.CodeNoSession, "no_active_session")
	}

	payloads, err := s.browser.ScanElements(ctx, hidden, s.config.CaptureConfig.MaxScanElements)
	if err != nil {
		return 0, err
	}

	pageURL := sess.targetURL
	if url, uerr := s.browser.PageURL(ctx); uerr == nil && url != "" {
		pageURL = url
	}

	for _, payload := range payloads {
		if ok, _ := s.ingest(sess, payload, false, source, pageURL); ok {
			added++
		}
	}

	step.AddEvent(fmt.Sprintf("added %d of %d payloads", added, len(payloads)))
	logger.Info("Scan finished", zap.Int("payloads", len(payloads)), zap.Int("added", added))

	return added, nil
}

func (s *CaptureService) Status(ctx context.Context) (entity.CaptureSnapshot, error) {
	const op = "Status"

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return entity.CaptureSnapshot{}, apperr.WrapErrorWithReason(op, apperr.CodeNoSession, "no_active_session")
	}

	return sess.collector.Snapshot(), nil
}

func (s *CaptureService) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session != nil
}

// Stop seals the accepted set, abandons in-flight fusions and writes
// the report. The final snapshot and the shutdown of the collector are
// one atomic step, so nothing accepted after it leaks into the report.
func (s *CaptureService) Stop(ctx context.Context, reason string) (report *entity.CaptureReport, err error) {
	const op = "Stop"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("reason", reason))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeNoSession, "no_active_session")
	}

	logger = logger.With(zap.String(logg.SessionID, sess.id.String()))

	if sess.idle != nil {
		sess.idle.Stop()
	}

	step.AddEvent("sealing accepted set")

	snap := sess.collector.Close()
	sess.cancel()

	report = s.buildReport(ctx, sess, snap, reason)

	step.AddEvent("writing results")

	paths, werr := s.writer.WriteResults(ctx, report)
	if werr != nil {
		logger.Error("Failed to write results", zap.Error(werr))

		return report, werr
	}
	report.OutputPaths = paths

	if s.config.OutputConfig.Screenshot {
		shot := filepath.Join(s.config.OutputConfig.Dir, fmt.Sprintf("page_%s.jpg", shortID(sess.id)))
		if serr := s.browser.Screenshot(ctx, shot); serr != nil {
			logger.Warn("Failed to capture page screenshot", zap.Error(serr))
		} else {
			report.OutputPaths = append(report.OutputPaths, shot)
		}
	}

	logger.Info("Capture session stopped",
		zap.String("reason", reason),
		zap.Int("total_seen", report.TotalSeen),
		zap.Int("unique", report.UniqueCount),
	)

	return report, nil
}

func (s *CaptureService) buildReport(ctx context.Context, sess *captureSession, snap entity.CaptureSnapshot, reason string) *entity.CaptureReport {
	report := &entity.CaptureReport{
		SessionID:    sess.id,
		TargetURL:    sess.targetURL,
		StartedAt:    sess.startedAt,
		StoppedAt:    time.Now().UTC(),
		StopReason:   reason,
		TotalSeen:    snap.TotalSeen,
		UniqueCount:  snap.UniqueCount(),
		VisibleCount: snap.VisibleCount,
		HiddenCount:  snap.HiddenCount,
		Records:      snap.Records,
	}

	if title, err := s.browser.PageTitle(ctx); err == nil {
		report.PageTitle = title
	}

	return report
}

// idleStop fires from the watchdog timer when no producer event arrived
// for the configured window.
func (s *CaptureService) idleStop() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	report, err := s.Stop(ctx, entity.StopReasonIdle)
	if err != nil {
		if !apperr.Is(err, apperr.CodeNoSession) {
			s.logger.Error("Idle stop failed", zap.Error(err))
		}

		return
	}

	fmt.Printf("\n⏰ Session idle, results saved (%d unique of %d seen)\n",
		report.UniqueCount, report.TotalSeen)
	for _, p := range report.OutputPaths {
		fmt.Printf("   📄 %s\n", p)
	}
}

func shortID(id uuid.UUID) string {
	return strings.Split(id.String(), "-")[0]
}
