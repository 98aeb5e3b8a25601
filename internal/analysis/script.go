package analysis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jward/testlens/internal/runtime"
)

// ScriptResolver delegates fixture resolution to a Risor script. The script
// sees test_name, qualified_name, params, param_details, decorators and
// source as globals and must evaluate to a list of strings.
type ScriptResolver struct {
	Runtime *runtime.Runtime
	Script  string
}

func (r *ScriptResolver) ResolveFixtures(ctx context.Context, fn FunctionInfo) ([]string, error) {
	params := fn.Params()
	names := make([]string, 0, len(params))
	kinds := make([]map[string]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
		kinds = append(kinds, map[string]string{
			"name":        p.Name,
			"kind":        string(p.Kind),
			"annotation":  p.Annotation,
			"has_default": strconv.FormatBool(p.HasDefault),
		})
	}

	out, err := r.Runtime.RunStrings(ctx, r.Script, map[string]any{
		"test_name":      fn.Name,
		"qualified_name": fn.QualifiedName,
		"params":         names,
		"param_details":  kinds,
		"decorators":     fn.DecoratorTexts(),
		"source":         fn.Source(),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: fixtures for %s: %w", fn.QualifiedName, err)
	}
	return out, nil
}
