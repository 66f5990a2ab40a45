package entity

import (
	"time"

	"github.com/google/uuid"
)

// CaptureSource names the producer that observed an element.
type CaptureSource string

const (
	SourcePointer    CaptureSource = "pointer"
	SourceScan       CaptureSource = "scan"
	SourceHiddenScan CaptureSource = "hidden_scan"
)

// Stop reasons recorded on the final report.
const (
	StopReasonUser   = "user"
	StopReasonIdle   = "idle"
	StopReasonSignal = "signal"
)

// BoundingBox is the element's layout rectangle in page coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementRecord is one captured interactive element. Selectors and the
// visibility verdict are fixed at capture time; AdvancedMetadata arrives
// later when the asynchronous enrichment resolves.
type ElementRecord struct {
	Tag               string            `json:"tag"`
	ID                string            `json:"id,omitempty"`
	Name              string            `json:"name,omitempty"`
	ClassAttribute    string            `json:"classAttribute,omitempty"`
	Text              string            `json:"text,omitempty"`
	Role              string            `json:"role,omitempty"`
	AriaLabel         string            `json:"ariaLabel,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	DatasetAttributes map[string]string `json:"datasetAttributes,omitempty"`
	CSSSelector       string            `json:"cssSelector"`
	XPathSelector     string            `json:"xpathSelector"`
	ShadowHostChain   []string          `json:"shadowHostChain,omitempty"`
	Visible           bool              `json:"visible"`
	BoundingBox       *BoundingBox      `json:"boundingBox,omitempty"`
	CrossOriginFrame  bool              `json:"crossOriginFrame,omitempty"`
	PageURL           string            `json:"pageUrl"`
	CaptureTimestamp  time.Time         `json:"captureTimestamp"`
	Source            CaptureSource     `json:"source,omitempty"`
	AdvancedMetadata  *AdvancedMetadata `json:"advancedMetadata,omitempty"`
}

// AdvancedMetadata holds computed style, accessibility and listener facts
// fetched over the devtools protocol. FetchError is set instead of the
// other fields when the fetch could not complete.
type AdvancedMetadata struct {
	ZIndex          string   `json:"zIndex,omitempty"`
	Opacity         string   `json:"opacity,omitempty"`
	Display         string   `json:"display,omitempty"`
	Visibility      string   `json:"visibility,omitempty"`
	PointerEvents   string   `json:"pointerEvents,omitempty"`
	Cursor          string   `json:"cursor,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	Color           string   `json:"color,omitempty"`
	Font            string   `json:"font,omitempty"`
	AriaRole        string   `json:"ariaRole,omitempty"`
	AriaName        string   `json:"ariaName,omitempty"`
	Listeners       []string `json:"listeners,omitempty"`
	FetchError      string   `json:"fetchError,omitempty"`
}

// Failed reports whether the enrichment resolved with an error indicator.
func (m *AdvancedMetadata) Failed() bool {
	return m != nil && m.FetchError != ""
}

// FilterType discriminates the filter expression kinds.
type FilterType string

const (
	FilterTag       FilterType = "tag"
	FilterClass     FilterType = "class"
	FilterID        FilterType = "id"
	FilterAttribute FilterType = "attribute"
)

// FilterExpression is one parsed capture filter. HasValue distinguishes
// an attribute presence check from an attribute value check.
type FilterExpression struct {
	Type     FilterType
	Name     string
	Value    string
	HasValue bool
}

// CaptureSnapshot is a point-in-time view of the accepted set. Records
// is ordered by first acceptance. TotalSeen counts every submission,
// duplicates included.
type CaptureSnapshot struct {
	Records      []*ElementRecord
	TotalSeen    int
	VisibleCount int
	HiddenCount  int
}

// UniqueCount is the number of records retained after deduplication.
func (s CaptureSnapshot) UniqueCount() int {
	return len(s.Records)
}

// CaptureReport is the final session result written to disk.
type CaptureReport struct {
	SessionID    uuid.UUID        `json:"sessionId"`
	TargetURL    string           `json:"targetUrl"`
	PageTitle    string           `json:"pageTitle,omitempty"`
	StartedAt    time.Time        `json:"startedAt"`
	StoppedAt    time.Time        `json:"stoppedAt"`
	StopReason   string           `json:"stopReason"`
	TotalSeen    int              `json:"totalSeen"`
	UniqueCount  int              `json:"uniqueCount"`
	VisibleCount int              `json:"visibleCount"`
	HiddenCount  int              `json:"hiddenCount"`
	Records      []*ElementRecord `json:"records"`
	OutputPaths  []string         `json:"-"`
}
