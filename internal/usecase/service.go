package usecase

import (
	"element-scout/internal/config"
	"element-scout/internal/ports"
	"element-scout/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Capture adapters.CaptureService
	Browser adapters.BrowserService
}

type Params struct {
	fx.In

	Logger  *zap.Logger
	Config  *config.Config
	Browser ports.BrowserManager
	Source  ports.MetadataSource
	Writer  ports.ResultWriter
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)

	return &Service{
		Capture: factory.CreateCaptureService(),
		Browser: factory.CreateBrowserService(),
	}
}
