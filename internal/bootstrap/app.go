package bootstrap

import (
	"element-scout/internal/browser"
	"element-scout/internal/config"
	"element-scout/internal/console"
	"element-scout/internal/output"
	"element-scout/internal/ports"
	"element-scout/internal/usecase"
	"time"

	"go.uber.org/fx"
)

func NewApp(overrides config.Overrides) *fx.App {
	return fx.New(
		fx.Provide(
			func() (*config.Config, error) {
				return config.GetConfig(overrides)
			},
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewManager, fx.As(new(ports.BrowserManager))),
			fx.Annotate(browser.NewMetadataService, fx.As(new(ports.MetadataSource))),
			fx.Annotate(output.NewWriter, fx.As(new(ports.ResultWriter))),

			usecase.NewUsecase,

			console.NewInterface,
		),

		fx.Invoke(
			runConsole,
		),

		fx.StartTimeout(10*time.Second),
	)
}
