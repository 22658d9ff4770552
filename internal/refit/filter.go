package refit

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// CandidateFilter is a compiled boolean expression over candidate
// properties. Available variables: pt, px, py, pz, charge, crossing,
// nclusters, nsilicon, ntpc, nmicromegas.
type CandidateFilter struct {
	expression string
	program    *exprvm.Program
}

// CompileFilter compiles expression. An empty expression returns a nil
// filter, which accepts everything.
func CompileFilter(expression string) (*CandidateFilter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := exprlang.Compile(expression, exprlang.Env(filterEnv(NewCandidate(0))), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile candidate filter %q: %w", expression, err)
	}
	return &CandidateFilter{expression: expression, program: program}, nil
}

func filterEnv(t *Track) map[string]any {
	counts := t.ClusterCounts()
	return map[string]any{
		"pt":          t.PT(),
		"px":          t.Mom.X,
		"py":          t.Mom.Y,
		"pz":          t.Mom.Z,
		"charge":      t.Charge,
		"crossing":    int(t.Crossing),
		"nclusters":   len(t.ClusterKeys),
		"nsilicon":    counts.Silicon,
		"ntpc":        counts.TPC,
		"nmicromegas": counts.Micromegas,
	}
}

// String returns the source expression.
func (f *CandidateFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Match reports whether t passes the filter.
func (f *CandidateFilter) Match(t *Track) (bool, error) {
	if f == nil {
		return true, nil
	}
	result, err := exprlang.Run(f.program, filterEnv(t))
	if err != nil {
		return false, fmt.Errorf("evaluate candidate filter %q: %w", f.expression, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("candidate filter %q returned %T", f.expression, result)
	}
	return ok, nil
}
