package ports

import (
	"context"
	"element-scout/internal/entity"
)

// CaptureFunc receives one raw element payload from the page. topFrame
// is false when the payload originated in a child frame.
type CaptureFunc func(payload map[string]any, topFrame bool)

type BrowserManager interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	PageURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	// StartCapture installs the in-page click hook on the current page
	// and on every page loaded afterwards, routing payloads to onCapture.
	StartCapture(ctx context.Context, onCapture CaptureFunc) error
	// ScanElements walks the current document and returns raw payloads
	// for up to max elements, visible ones by default or hidden ones
	// when hidden is set.
	ScanElements(ctx context.Context, hidden bool, max int) ([]map[string]any, error)
	// CDP sends one raw devtools protocol command to the current page.
	CDP(ctx context.Context, method string, params map[string]any) (any, error)
	Screenshot(ctx context.Context, path string) error
	IsReady() bool
}

type MetadataSource interface {
	// Fetch resolves advanced metadata for the element the selector
	// addresses. It never returns nil; failures set FetchError.
	Fetch(ctx context.Context, selector string) *entity.AdvancedMetadata
}

type ResultWriter interface {
	// WriteResults persists the report and returns the written paths.
	WriteResults(ctx context.Context, report *entity.CaptureReport) ([]string, error)
}
