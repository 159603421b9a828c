package brain

import (
	"fmt"
	"strings"
)

// evalSkipIf evaluates a phase's skip_if expression against a job's merged
// options. Deliberately minimal: either a bare option name (truthy check)
// or "name == literal" / "name != literal" equality against a string,
// number, or boolean literal. A name missing from options is falsy.
//
// This lives beside the Brain rather than in internal/graph: the graph
// package validates structure (cycles, missing depends_on) and has no
// notion of a job's live option values, which is exactly what skip_if needs
// to read.
func evalSkipIf(expr string, options map[string]any) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false
	}
	for _, op := range []string{"==", "!="} {
		if idx := strings.Index(expr, op); idx >= 0 {
			name := strings.TrimSpace(expr[:idx])
			lit := strings.Trim(strings.TrimSpace(expr[idx+len(op):]), `"'`)
			equal := fmt.Sprintf("%v", options[name]) == lit
			if op == "==" {
				return equal
			}
			return !equal
		}
	}
	return truthy(options[expr])
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false"
	default:
		return true
	}
}

