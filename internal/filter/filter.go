// Package filter parses capture filter expressions and decides whether
// a record matches them.
package filter

import (
	"element-scout/internal/entity"
	"element-scout/pkg/apperr"
	"fmt"
	"strings"
)

// ParseSet parses a comma-separated filter list. Supported token forms
// are a bare tag name, .class, #id, [attr] and [attr=value]. A blank
// list yields an empty set, which matches everything.
func ParseSet(raw string) ([]entity.FilterExpression, error) {
	const op = "ParseSet"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var set []entity.FilterExpression
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		expr, err := parseToken(token)
		if err != nil {
			return nil, apperr.Wrap(op, apperr.CodeInvalidFilter, err, map[string]any{
				apperr.MetaToken: token,
			})
		}
		set = append(set, expr)
	}
	return set, nil
}

func parseToken(token string) (entity.FilterExpression, error) {
	switch {
	case strings.HasPrefix(token, "."):
		name := token[1:]
		if name == "" {
			return entity.FilterExpression{}, fmt.Errorf("class filter needs a name")
		}
		return entity.FilterExpression{Type: entity.FilterClass, Name: name}, nil

	case strings.HasPrefix(token, "#"):
		name := token[1:]
		if name == "" {
			return entity.FilterExpression{}, fmt.Errorf("id filter needs a name")
		}
		return entity.FilterExpression{Type: entity.FilterID, Name: name}, nil

	case strings.HasPrefix(token, "["):
		if !strings.HasSuffix(token, "]") || len(token) < 3 {
			return entity.FilterExpression{}, fmt.Errorf("attribute filter must look like [name] or [name=value]")
		}
		body := token[1 : len(token)-1]
		name, value, hasValue := strings.Cut(body, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return entity.FilterExpression{}, fmt.Errorf("attribute filter needs a name")
		}
		if !hasValue {
			return entity.FilterExpression{Type: entity.FilterAttribute, Name: name}, nil
		}
		return entity.FilterExpression{
			Type:     entity.FilterAttribute,
			Name:     name,
			Value:    strings.Trim(strings.TrimSpace(value), `"'`),
			HasValue: true,
		}, nil

	default:
		if !validTag(token) {
			return entity.FilterExpression{}, fmt.Errorf("tag filter %q has characters outside [a-z0-9-]", token)
		}
		return entity.FilterExpression{Type: entity.FilterTag, Name: strings.ToLower(token)}, nil
	}
}

func validTag(token string) bool {
	for i, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return len(token) > 0
}

// Matches reports whether the record satisfies the filter set. The set
// is a disjunction: one matching expression suffices. An empty set
// matches every record.
func Matches(rec *entity.ElementRecord, set []entity.FilterExpression) bool {
	if len(set) == 0 {
		return true
	}
	for _, expr := range set {
		if matchesOne(rec, expr) {
			return true
		}
	}
	return false
}

func matchesOne(rec *entity.ElementRecord, expr entity.FilterExpression) bool {
	switch expr.Type {
	case entity.FilterTag:
		return strings.EqualFold(rec.Tag, expr.Name)

	case entity.FilterClass:
		for _, cls := range strings.Fields(rec.ClassAttribute) {
			if cls == expr.Name {
				return true
			}
		}
		return false

	case entity.FilterID:
		return rec.ID == expr.Name

	case entity.FilterAttribute:
		val, ok := rec.Attributes[expr.Name]
		if !ok {
			return false
		}
		if !expr.HasValue {
			return true
		}
		return val == expr.Value

	default:
		return false
	}
}
