package console

import (
	"bufio"
	"context"
	"element-scout/internal/config"
	"element-scout/internal/entity"
	"element-scout/internal/usecase"
	"element-scout/pkg/apperr"
	"element-scout/pkg/logg"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Interface struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	shutdowner fx.Shutdowner
	ctx        context.Context
	cancel     context.CancelFunc
	sigChan    chan os.Signal
	stopping   bool
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Shutdowner fx.Shutdowner
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)

	return &Interface{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, "Console")),
		usecase:    params.Usecase,
		shutdowner: params.Shutdowner,
		ctx:        ctx,
		cancel:     cancel,
		sigChan:    sigChan,
		stopping:   false,
	}
}

func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	// Setup signal handler
	signal.Notify(i.sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Handle signals in goroutine
	go func() {
		<-i.sigChan
		fmt.Println("\n\n⚠️  Interrupt received, finishing session...")
		i.finalizeSession(entity.StopReasonSignal)
		i.Stop()
	}()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if i.stopping {
			break
		}

		fmt.Print("\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if err.Error() == "exit" {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Printf("Error: %v\n", err)
		}
	}

	// Covers the exit command and stdin closing. The signal path calls
	// Stop itself, in which case this is a no-op.
	return i.Stop()
}

func (i *Interface) Stop() error {
	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("Stopping console interface...")

	i.cancel()

	fmt.Println("👋 Goodbye!")

	// Shutdown fails when fx is already stopping from its own signal
	// handler; the app is exiting either way.
	if err := i.shutdowner.Shutdown(); err != nil {
		i.logger.Warn("Shutdown already in progress", zap.Error(err))
	}

	return nil
}

func (i *Interface) handleCommand(input string) error {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "help", "h":
		i.printHelp()

		return nil
	case "scan", "s":
		return i.runScan(false)
	case "hidden":
		return i.runScan(true)
	case "status", "st":
		return i.showStatus()
	case "open", "o":
		if len(fields) < 2 {
			return fmt.Errorf("usage: open <url>")
		}

		return i.openURL(fields[1])
	case "stop":
		i.finalizeSession(entity.StopReasonUser)

		return nil
	case "exit", "quit", "q":
		fmt.Println("Shutting down...")
		i.finalizeSession(entity.StopReasonUser)

		return fmt.Errorf("exit")
	default:
		if looksLikeURL(input) {
			return i.openURL(input)
		}

		return fmt.Errorf("unknown command %q, type 'help' for the command list", input)
	}
}

func (i *Interface) runScan(hidden bool) error {
	if !i.usecase.Capture.Active() {
		fmt.Println("No active session. Use 'open <url>' to start one")

		return nil
	}

	label := "visible"
	scan := i.usecase.Capture.ScanAll
	if hidden {
		label = "hidden"
		scan = i.usecase.Capture.ScanHidden
	}

	fmt.Printf("\n🔍 Scanning %s elements...\n", label)

	added, err := scan(i.ctx)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Scan added %d new elements\n", added)

	return i.showStatus()
}

func (i *Interface) showStatus() error {
	if !i.usecase.Capture.Active() {
		fmt.Println("No active session. Use 'open <url>' to start one")

		return nil
	}

	snap, err := i.usecase.Capture.Status(i.ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📊 %d unique of %d seen (%d visible, %d hidden)\n",
		snap.UniqueCount(), snap.TotalSeen, snap.VisibleCount, snap.HiddenCount)

	return nil
}

func (i *Interface) openURL(url string) error {
	url = normalizeURL(url)

	if i.usecase.Capture.Active() {
		fmt.Printf("🌐 Navigating to %s (session continues)\n", url)

		return i.usecase.Browser.Navigate(i.ctx, url)
	}

	return i.usecase.Capture.Start(i.ctx, url)
}

func (i *Interface) finalizeSession(reason string) {
	if !i.usecase.Capture.Active() {
		return
	}

	report, err := i.usecase.Capture.Stop(i.ctx, reason)
	if err != nil {
		if apperr.Is(err, apperr.CodeNoSession) {
			return
		}

		fmt.Printf("❌ Failed to finalize session: %v\n", err)

		if report != nil {
			fmt.Printf("📊 %d unique of %d seen were captured before the failure\n",
				report.UniqueCount, report.TotalSeen)
		}

		return
	}

	fmt.Printf("\n✅ Session finished: %d unique of %d seen (%d visible, %d hidden)\n",
		report.UniqueCount, report.TotalSeen, report.VisibleCount, report.HiddenCount)
	for _, p := range report.OutputPaths {
		fmt.Printf("   📄 %s\n", p)
	}
}

func looksLikeURL(input string) bool {
	if strings.Contains(input, " ") {
		return false
	}

	return strings.Contains(input, "://") || strings.Contains(input, ".")
}

func normalizeURL(url string) string {
	if strings.Contains(url, "://") {
		return url
	}

	return "https://" + url
}

func (i *Interface) printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║            🔎  Element Scout  🌐                          ║
║                                                           ║
║   Capture page elements, derive locators, draft tests    ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}

func (i *Interface) printHelp() {
	help := `
Available commands:
  open <url>, o - Navigate to a page and start capturing
  scan, s       - Record every visible element on the page
  hidden        - Record the hidden elements too
  status, st    - Show session counters
  stop          - Finish the session and write the results
  help, h       - Show this help message
  exit, quit, q - Exit the application

While a session is running, every element you click in the
browser is captured automatically.
`
	fmt.Println(help)
}
