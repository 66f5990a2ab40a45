package browser

import (
	"context"
	"element-scout/internal/entity"
	"element-scout/internal/ports"
	"element-scout/pkg/logg"
	"element-scout/pkg/tracing"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	metadataServiceName = "MetadataService"
	metadataTracer      = "browser.metadata"
)

// MetadataService resolves advanced element metadata over the devtools
// protocol: computed style, the accessibility node and the attached
// event listeners.
type MetadataService struct {
	browser ports.BrowserManager
	logger  *zap.Logger
	tracer  trace.Tracer
}

type MetadataParams struct {
	fx.In

	Browser ports.BrowserManager
	Logger  *zap.Logger
}

func NewMetadataService(params MetadataParams) *MetadataService {
	return &MetadataService{
		browser: params.Browser,
		logger:  params.Logger.With(zap.String(logg.Layer, metadataServiceName)),
		tracer:  otel.Tracer(metadataTracer),
	}
}

// Fetch never returns nil. When any protocol step fails the result
// carries the failure in FetchError and nothing else.
func (s *MetadataService) Fetch(ctx context.Context, selector string) *entity.AdvancedMetadata {
	const op = "Fetch"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))

	meta, err := s.fetch(ctx, selector)
	step.End(err)

	if err != nil {
		logger.Debug("Metadata fetch failed", zap.Error(err))

		return &entity.AdvancedMetadata{FetchError: err.Error()}
	}

	return meta
}

func (s *MetadataService) fetch(ctx context.Context, selector string) (*entity.AdvancedMetadata, error) {
	if selector == "" {
		return nil, fmt.Errorf("empty selector")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.browser.CDP(ctx, "DOM.getDocument", map[string]any{"depth": 0})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	rootID := int(floatField(mapField(doc, "root"), "nodeId"))
	if rootID == 0 {
		return nil, fmt.Errorf("document root unavailable")
	}

	found, err := s.browser.CDP(ctx, "DOM.querySelector", map[string]any{
		"nodeId":   rootID,
		"selector": selector,
	})
	if err != nil {
		return nil, fmt.Errorf("query selector: %w", err)
	}
	nodeID := int(floatField(asMap(found), "nodeId"))
	if nodeID == 0 {
		return nil, fmt.Errorf("selector matched no node")
	}

	styleRes, err := s.browser.CDP(ctx, "CSS.getComputedStyleForNode", map[string]any{"nodeId": nodeID})
	if err != nil {
		return nil, fmt.Errorf("computed style: %w", err)
	}
	meta := metaFromComputedStyle(styleRes)

	axRes, err := s.browser.CDP(ctx, "Accessibility.getPartialAXTree", map[string]any{
		"nodeId":         nodeID,
		"fetchRelatives": false,
	})
	if err != nil {
		return nil, fmt.Errorf("accessibility tree: %w", err)
	}
	meta.AriaRole, meta.AriaName = axRoleAndName(axRes)

	resolved, err := s.browser.CDP(ctx, "DOM.resolveNode", map[string]any{"nodeId": nodeID})
	if err != nil {
		return nil, fmt.Errorf("resolve node: %w", err)
	}
	objectID := stringField(mapField(resolved, "object"), "objectId")
	if objectID == "" {
		return nil, fmt.Errorf("node object unavailable")
	}

	listenersRes, err := s.browser.CDP(ctx, "DOMDebugger.getEventListeners", map[string]any{"objectId": objectID})
	if err != nil {
		return nil, fmt.Errorf("event listeners: %w", err)
	}
	meta.Listeners = listenerTypes(listenersRes)

	return meta, nil
}

func metaFromComputedStyle(res any) *entity.AdvancedMetadata {
	items, _ := asMap(res)["computedStyle"].([]any)
	styles := make(map[string]string, len(items))
	for _, raw := range items {
		entry := asMap(raw)
		if name := stringField(entry, "name"); name != "" {
			styles[name] = stringField(entry, "value")
		}
	}

	return &entity.AdvancedMetadata{
		ZIndex:          styles["z-index"],
		Opacity:         styles["opacity"],
		Display:         styles["display"],
		Visibility:      styles["visibility"],
		PointerEvents:   styles["pointer-events"],
		Cursor:          styles["cursor"],
		BackgroundColor: styles["background-color"],
		Color:           styles["color"],
		Font:            strings.TrimSpace(styles["font-size"] + " " + styles["font-family"]),
	}
}

func axRoleAndName(res any) (role, name string) {
	nodes, _ := asMap(res)["nodes"].([]any)
	for _, raw := range nodes {
		node := asMap(raw)
		if node == nil {
			continue
		}
		if ignored, ok := node["ignored"].(bool); ok && ignored {
			continue
		}

		return stringField(asMap(node["role"]), "value"), stringField(asMap(node["name"]), "value")
	}

	return "", ""
}

func listenerTypes(res any) []string {
	items, _ := asMap(res)["listeners"].([]any)
	var types []string
	for _, raw := range items {
		if t := stringField(asMap(raw), "type"); t != "" {
			types = append(types, t)
		}
	}

	return types
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)

	return m
}

func mapField(v any, key string) map[string]any {
	m := asMap(v)
	if m == nil {
		return nil
	}

	return asMap(m[key])
}

func floatField(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	if f, ok := m[key].(float64); ok {
		return f
	}
	if i, ok := m[key].(int); ok {
		return float64(i)
	}

	return 0
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}

	return ""
}
