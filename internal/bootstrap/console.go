package bootstrap

import (
	"context"
	"element-scout/internal/config"
	"element-scout/internal/console"
	"element-scout/internal/entity"
	"element-scout/internal/usecase"
	"element-scout/pkg/apperr"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runConsole(
	lc fx.Lifecycle,
	consoleInterface *console.Interface,
	uc *usecase.Service,
	conf *config.Config,
	logger *zap.Logger,
	_ *sdktrace.TracerProvider,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting Element Scout console...")

			logger.Info("Launching browser...")

			if err := uc.Browser.Launch(ctx); err != nil {
				logger.Error("Failed to launch browser", zap.Error(err))

				return err
			}

			logger.Info("Browser launched successfully")

			go func() {
				autoStart(uc, conf, logger)

				if err := consoleInterface.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Element Scout...")

			if _, err := uc.Capture.Stop(ctx, entity.StopReasonSignal); err != nil && !apperr.Is(err, apperr.CodeNoSession) {
				logger.Error("Failed to finish capture session", zap.Error(err))
			}

			if err := uc.Browser.Close(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	})
}

// autoStart opens a capture session right away when a target URL was supplied
// through flags, env or the config file, so the binary can be pointed at a
// page without typing an open command first.
func autoStart(uc *usecase.Service, conf *config.Config, logger *zap.Logger) {
	url := conf.CaptureConfig.TargetURL
	if url == "" {
		return
	}

	ctx := context.Background()

	if err := uc.Capture.Start(ctx, url); err != nil {
		logger.Error("Failed to start capture session", zap.Error(err), zap.String("url", url))

		return
	}

	if !conf.CaptureConfig.HiddenScan {
		return
	}

	if _, err := uc.Capture.ScanAll(ctx); err != nil {
		logger.Error("Initial scan failed", zap.Error(err))

		return
	}

	if _, err := uc.Capture.ScanHidden(ctx); err != nil {
		logger.Error("Initial hidden scan failed", zap.Error(err))
	}
}
