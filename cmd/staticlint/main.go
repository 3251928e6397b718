// Command staticlint runs the bridge's static analysis suite.
//
// Analyzers are grouped (vet, staticcheck, simple, style, bridge). Set
// STATICLINT_DISABLE to a comma separated list of group or analyzer names to
// switch them off, e.g. STATICLINT_DISABLE=style,SA1019.
package main

import (
	"os"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"

	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/gostaticanalysis/forcetypeassert"
	"github.com/gostaticanalysis/nilerr"
	"github.com/vshulcz/dslbridge/cmd/staticlint/exitguard"
)

const disableEnv = "STATICLINT_DISABLE"

// group is a named set of analyzers that can be disabled as a unit.
type group struct {
	name      string
	analyzers []*analysis.Analyzer
}

// styleChecks are the stylecheck rules the codebase follows.
var styleChecks = map[string]bool{
	"ST1000": true, // package comments
	"ST1005": true, // error strings
	"ST1012": true, // error variable names
	"ST1019": true, // duplicate imports
}

func suite() []group {
	return []group{
		{name: "vet", analyzers: []*analysis.Analyzer{
			assign.Analyzer,
			atomic.Analyzer,
			bools.Analyzer,
			copylock.Analyzer,
			errorsas.Analyzer,
			httpresponse.Analyzer,
			loopclosure.Analyzer,
			lostcancel.Analyzer,
			nilfunc.Analyzer,
			printf.Analyzer,
			shift.Analyzer,
			stdmethods.Analyzer,
			structtag.Analyzer,
			tests.Analyzer,
			unmarshal.Analyzer,
			unreachable.Analyzer,
			unusedresult.Analyzer,
		}},
		{name: "staticcheck", analyzers: pick(staticcheck.Analyzers, func(name string) bool {
			return strings.HasPrefix(name, "SA")
		})},
		{name: "simple", analyzers: pick(simple.Analyzers, func(string) bool { return true })},
		{name: "style", analyzers: pick(stylecheck.Analyzers, func(name string) bool { return styleChecks[name] })},
		{name: "bridge", analyzers: []*analysis.Analyzer{
			nilerr.Analyzer,
			forcetypeassert.Analyzer,
			exitguard.Analyzer,
		}},
	}
}

// pick unwraps the lint analyzers whose names satisfy keep.
func pick(from []*lint.Analyzer, keep func(name string) bool) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, la := range from {
		if la == nil || la.Analyzer == nil || !keep(la.Analyzer.Name) {
			continue
		}
		out = append(out, la.Analyzer)
	}
	return out
}

// selectAnalyzers flattens groups, skipping disabled groups or analyzers, nil
// entries and analyzers registered twice under the same name.
func selectAnalyzers(groups []group, disabled []string) []*analysis.Analyzer {
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}

	seen := make(map[string]bool)
	var out []*analysis.Analyzer
	for _, g := range groups {
		if off[g.name] {
			continue
		}
		for _, a := range g.analyzers {
			if a == nil || seen[a.Name] || off[a.Name] {
				continue
			}
			seen[a.Name] = true
			out = append(out, a)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	multichecker.Main(selectAnalyzers(suite(), splitList(os.Getenv(disableEnv)))...)
}
