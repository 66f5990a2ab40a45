package adapters

import (
	"context"
	"element-scout/internal/entity"
)

type CaptureService interface {
	Start(ctx context.Context, targetURL string) error
	ScanAll(ctx context.Context) (int, error)
	ScanHidden(ctx context.Context) (int, error)
	Status(ctx context.Context) (entity.CaptureSnapshot, error)
	Stop(ctx context.Context, reason string) (*entity.CaptureReport, error)
	Active() bool
}

type BrowserService interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	PageURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	IsReady() bool
}
