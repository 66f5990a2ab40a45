package browser

import (
	"context"
	"element-scout/internal/config"
	"element-scout/internal/ports"
	"element-scout/pkg/apperr"
	"element-scout/pkg/logg"
	"element-scout/pkg/tracing"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	browserManagerName = "BrowserManager"
	browserTracer      = "browser.manager"

	// captureBindingName is the window function the in-page hook calls
	// with each captured payload.
	captureBindingName = "elementScoutCapture"

	defaultScanLimit = 1500
	loadStateTimeout = 5000
)

type Manager struct {
	config         *config.Config
	logger         *zap.Logger
	tracer         trace.Tracer
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	cdp            playwright.CDPSession
	cdpPage        playwright.Page
	ready          bool

	hookMu    sync.RWMutex
	onCapture ports.CaptureFunc
	hookBound bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, browserManagerName)),
		tracer: otel.Tracer(browserTracer),
		ready:  false,
	}
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching browser...")
	step.AddEvent("installing playwright")

	err = playwright.Install()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.playwright = pw

	if m.config.BrowserConfig.UserDataDir != "" {
		return m.launchPersistent(ctx)
	}

	return m.launchNew(ctx)
}

func (m *Manager) launchPersistent(ctx context.Context) (err error) {
	const op = "launchPersistent"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching persistent browser context")

	userDataDir := m.config.BrowserConfig.UserDataDir

	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	options := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:          playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:            playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		UserAgent:         playwright.String("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
		AcceptDownloads:   playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String("en-US"),
		Proxy:             m.proxy(),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1920,1080",
		},
		IgnoreHttpsErrors: playwright.Bool(true),
	}

	browserContext, err := m.playwright.Chromium.LaunchPersistentContext(userDataDir, options)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "launch_persistent_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	m.browserContext = browserContext

	pages := browserContext.Pages()

	if len(pages) > 0 {
		m.page = pages[0]
		logger.Info("Using existing page")
	} else {
		page, err := browserContext.NewPage()
		if err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "new_page_failed",
				apperr.MetaStage:  apperr.StageBrowser,
			})
		}
		m.page = page
		logger.Info("Created new page")
	}

	m.ready = true
	logger.Info("Browser launched successfully")

	return nil
}

func (m *Manager) launchNew(ctx context.Context) (err error) {
	const op = "launchNew"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching new browser")

	browserOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.config.BrowserConfig.Headless),
		SlowMo:   playwright.Float(float64(m.config.BrowserConfig.SlowMo)),
		Proxy:    m.proxy(),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	}

	browser, err := m.playwright.Chromium.Launch(browserOptions)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.browser = browser

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		UserAgent:         playwright.String("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
		AcceptDownloads:   playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String("en-US"),
	}

	browserContext, err := browser.NewContext(contextOptions)
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	m.browserContext = browserContext

	page, err := browserContext.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.page = page

	m.ready = true
	logger.Info("Browser launched successfully")

	return nil
}

func (m *Manager) proxy() *playwright.Proxy {
	cfg := m.config.BrowserConfig
	if cfg.ProxyServer == "" {
		return nil
	}

	proxy := &playwright.Proxy{Server: cfg.ProxyServer}
	if cfg.ProxyUsername != "" {
		proxy.Username = playwright.String(cfg.ProxyUsername)
	}
	if cfg.ProxyPassword != "" {
		proxy.Password = playwright.String(cfg.ProxyPassword)
	}
	if cfg.ProxyBypass != "" {
		proxy.Bypass = playwright.String(cfg.ProxyBypass)
	}

	return proxy
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Closing connection to browser...")

	if m.cdp != nil {
		if err := m.cdp.Detach(); err != nil {
			logger.Warn("Failed to detach devtools session", zap.Error(err))
		}
		m.cdp = nil
		m.cdpPage = nil
	}

	if m.config.BrowserConfig.UserDataDir != "" {
		logger.Info("Persistent browser - keeping it open")
		m.ready = false
		logger.Info("Connection closed, browser still running")

		return nil
	}

	logger.Info("Non-persistent browser - closing completely")

	if m.browserContext != nil {
		if err := m.browserContext.Close(); err != nil {
			logger.Warn("Failed to close context", zap.Error(err))
		}
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logger.Warn("Failed to close browser", zap.Error(err))
		}
	}

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	m.ready = false
	logger.Info("Browser closed")

	return nil
}

func (m *Manager) ensurePageActive(ctx context.Context) error {
	if m.browserContext == nil {
		return fmt.Errorf("browser context is nil")
	}

	if m.page != nil && !m.page.IsClosed() {
		return nil
	}

	m.logger.Info("Page closed, reconnecting to active page...")

	pages := m.browserContext.Pages()

	for _, p := range pages {
		if !p.IsClosed() {
			m.page = p
			m.logger.Info("Reconnected to existing page")

			return m.rebindPage(ctx)
		}
	}

	m.logger.Info("No active pages found, creating new page...")

	page, err := m.browserContext.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create new page: %w", err)
	}

	m.page = page
	m.logger.Info("Created new page")

	return m.rebindPage(ctx)
}

// rebindPage reinstalls the capture hook after the active page changed.
// The devtools session belongs to the old page, so it is dropped and
// recreated lazily.
func (m *Manager) rebindPage(ctx context.Context) error {
	if m.cdp != nil {
		if err := m.cdp.Detach(); err != nil {
			m.logger.Warn("Failed to detach stale devtools session", zap.Error(err))
		}
		m.cdp = nil
		m.cdpPage = nil
	}

	m.hookMu.RLock()
	hooked := m.hookBound
	m.hookMu.RUnlock()

	if !hooked {
		return nil
	}

	return m.installCaptureHook(ctx)
}

func (m *Manager) Navigate(ctx context.Context, url string) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	step.AddEvent("navigating to URL")

	_, err = m.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(m.config.BrowserConfig.Timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})

	if err != nil {
		return apperr.Wrap(op, apperr.CodeNavigationFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	time.Sleep(500 * time.Millisecond)
	step.AddEvent("navigation completed")

	return nil
}

func (m *Manager) PageURL(ctx context.Context) (url string, err error) {
	const op = "PageURL"

	if !m.ready {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return "", apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	return m.page.URL(), nil
}

func (m *Manager) PageTitle(ctx context.Context) (title string, err error) {
	const op = "PageTitle"

	if !m.ready {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return "", apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	title, err = m.page.Title()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "title_failed",
		})
	}

	return title, nil
}

func (m *Manager) StartCapture(ctx context.Context, onCapture ports.CaptureFunc) (err error) {
	const op = "StartCapture"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	m.hookMu.Lock()
	m.onCapture = onCapture
	alreadyBound := m.hookBound
	m.hookMu.Unlock()

	if !alreadyBound {
		step.AddEvent("exposing capture binding")

		err = m.page.ExposeBinding(captureBindingName, func(source *playwright.BindingSource, args ...interface{}) interface{} {
			m.handleCapturePayload(source, args...)
			return nil
		})
		if err != nil {
			return apperr.Wrap(op, apperr.CodeCaptureFailed, err, map[string]any{
				apperr.MetaReason: "expose_binding_failed",
				apperr.MetaStage:  apperr.StageCapture,
			})
		}

		m.hookMu.Lock()
		m.hookBound = true
		m.hookMu.Unlock()
	}

	step.AddEvent("installing capture hook")

	if err := m.installCaptureHook(ctx); err != nil {
		return apperr.Wrap(op, apperr.CodeCaptureFailed, err, map[string]any{
			apperr.MetaReason: "install_hook_failed",
			apperr.MetaStage:  apperr.StageCapture,
		})
	}

	logger.Info("Capture hook active")

	return nil
}

// installCaptureHook arms the click listener on the current document and
// on every document the page loads afterwards. The script guards itself,
// so reinstalling is harmless.
func (m *Manager) installCaptureHook(ctx context.Context) error {
	script := captureHookScript()

	if err := m.page.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return fmt.Errorf("add init script: %w", err)
	}

	if _, err := m.page.Evaluate(script); err != nil {
		return fmt.Errorf("install on current page: %w", err)
	}

	return nil
}

func (m *Manager) handleCapturePayload(source *playwright.BindingSource, args ...interface{}) {
	m.hookMu.RLock()
	onCapture := m.onCapture
	m.hookMu.RUnlock()

	if onCapture == nil || len(args) == 0 {
		return
	}

	payload, ok := args[0].(map[string]interface{})
	if !ok {
		return
	}

	topFrame := source == nil || source.Frame == nil || source.Frame.ParentFrame() == nil

	onCapture(payload, topFrame)
}

func (m *Manager) ScanElements(ctx context.Context, hidden bool, max int) (payloads []map[string]any, err error) {
	const op = "ScanElements"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op,
		attribute.Bool("hidden", hidden),
		attribute.Int("max", max),
	)
	defer func() {
		step.End(err)
	}()

	if !m.ready {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	if max <= 0 {
		max = defaultScanLimit
	}

	m.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(loadStateTimeout),
	})

	step.AddEvent("walking document")

	result, err := m.page.Evaluate(elementWalkScript(), map[string]interface{}{
		"hidden": hidden,
		"max":    max,
	})
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeCaptureFailed, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageScan,
		})
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeCaptureFailed, "unexpected_result_type")
	}

	payloads = make([]map[string]any, 0, len(items))
	for _, item := range items {
		if payload, ok := item.(map[string]interface{}); ok {
			payloads = append(payloads, payload)
		}
	}

	step.AddEvent(fmt.Sprintf("collected %d payloads", len(payloads)))

	return payloads, nil
}

func (m *Manager) CDP(ctx context.Context, method string, params map[string]any) (result any, err error) {
	const op = "CDP"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("method", method))
	defer func() {
		step.End(err)
	}()

	if !m.ready {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	if err := m.ensureCDPSession(ctx); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeMetadataFailed, err, map[string]any{
			apperr.MetaReason: "cdp_session_failed",
			apperr.MetaStage:  apperr.StageFusion,
		})
	}

	result, err = m.cdp.Send(method, params)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeMetadataFailed, err, map[string]any{
			apperr.MetaReason: "cdp_send_failed",
			apperr.MetaStage:  apperr.StageFusion,
		})
	}

	return result, nil
}

// ensureCDPSession attaches a devtools session to the current page and
// enables the DOM and CSS domains once per session.
func (m *Manager) ensureCDPSession(ctx context.Context) error {
	if m.cdp != nil && m.cdpPage == m.page {
		return nil
	}

	if m.cdp != nil {
		if err := m.cdp.Detach(); err != nil {
			m.logger.Warn("Failed to detach stale devtools session", zap.Error(err))
		}
		m.cdp = nil
		m.cdpPage = nil
	}

	session, err := m.browserContext.NewCDPSession(m.page)
	if err != nil {
		return fmt.Errorf("new cdp session: %w", err)
	}

	for _, domain := range []string{"DOM.enable", "CSS.enable"} {
		if _, err := session.Send(domain, map[string]interface{}{}); err != nil {
			if derr := session.Detach(); derr != nil {
				m.logger.Warn("Failed to detach devtools session", zap.Error(derr))
			}
			return fmt.Errorf("%s: %w", domain, err)
		}
	}

	m.cdp = session
	m.cdpPage = m.page

	return nil
}

func (m *Manager) Screenshot(ctx context.Context, path string) (err error) {
	const op = "Screenshot"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(ctx); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	_, err = m.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(60),
	})

	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageOutput,
		})
	}

	return nil
}

func (m *Manager) IsReady() bool {
	return m.ready
}
