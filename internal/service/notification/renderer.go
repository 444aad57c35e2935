package notification

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/osteele/liquid"
)

// RenderMode selects how unresolved tokens are handled.
type RenderMode int

const (
	// RenderLax leaves unresolved tokens verbatim in the output and reports
	// them as warnings. Used by the production dispatch path.
	RenderLax RenderMode = iota
	// RenderStrict fails the render when any token is unresolved. Used by
	// admin template preview.
	RenderStrict
)

// tokenPattern matches the closed token grammar: {{name}} where name is a
// flat snake_case identifier. Liquid filters after the name are allowed
// ({{ total | currency }}); nested paths are not part of the grammar.
var tokenPattern = regexp.MustCompile(`\{\{\s*([a-z_][a-z0-9_]*)\s*(?:\|[^}]*)?\}\}`)

// Renderer substitutes variables into email templates. Templates use
// {{variable}} tokens over a fixed variable map; rendering is delegated to
// the Liquid engine so templates can also use filters, but the variable
// vocabulary itself is closed and validated up front.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer creates a renderer with the currency filter registered.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ order_total | currency }}
	engine.RegisterFilter("currency", func(value interface{}) string {
		switch v := value.(type) {
		case float64:
			return fmt.Sprintf("$%.2f", v)
		case int:
			return fmt.Sprintf("$%.2f", float64(v))
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return fmt.Sprintf("$%.2f", f)
			}
			return v
		default:
			return fmt.Sprintf("%v", value)
		}
	})

	return &Renderer{engine: engine}
}

// Render substitutes vars into tpl. In lax mode unresolved tokens are left
// verbatim and returned as warnings; in strict mode they fail the render
// with ErrUnresolvedTokens.
func (r *Renderer) Render(tpl string, vars map[string]interface{}, mode RenderMode) (string, []string, error) {
	unresolved := r.unresolvedTokens(tpl, vars)

	if mode == RenderStrict && len(unresolved) > 0 {
		return "", unresolved, fmt.Errorf("%w: %s", ErrUnresolvedTokens, strings.Join(unresolved, ", "))
	}

	// Bind unresolved tokens to their own literal text so they survive the
	// render verbatim instead of being blanked.
	bindings := make(map[string]interface{}, len(vars)+len(unresolved))
	for k, v := range vars {
		bindings[k] = v
	}
	for _, name := range unresolved {
		bindings[name] = "{{" + name + "}}"
	}

	out, err := r.engine.ParseAndRenderString(tpl, bindings)
	if err != nil {
		return "", unresolved, fmt.Errorf("render template: %w", err)
	}
	return out, unresolved, nil
}

// unresolvedTokens returns the token names used by tpl that vars does not
// define, in order of first appearance.
func (r *Renderer) unresolvedTokens(tpl string, vars map[string]interface{}) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(tpl, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := vars[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
