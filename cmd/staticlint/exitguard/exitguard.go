// Package exitguard defines an analyzer that reports process exits outside package main.
//
// Only the command's main package decides when the bridge terminates; library
// code returns errors instead of calling os.Exit, log.Fatal or a zap Fatal method.
package exitguard

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the exitguard analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "exitguard",
	Doc:      "reports os.Exit, log.Fatal* and zap Fatal calls outside package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

const zapPath = "go.uber.org/zap"

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() == "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return
		}
		if name, exits := exitCall(pass.TypesInfo, call); exits {
			pass.Reportf(call.Pos(), "%s ends the process outside package main; return an error instead", name)
		}
	})

	return nil, nil
}

// exitCall reports whether call terminates the process and returns the callee's name.
func exitCall(info *types.Info, call *ast.CallExpr) (string, bool) {
	if info == nil || call == nil {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil {
		return "", false
	}
	fn, ok := info.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}

	path, name := fn.Pkg().Path(), fn.Name()
	switch {
	case path == "os" && name == "Exit":
		return "os.Exit", true
	case path == "log" && strings.HasPrefix(name, "Fatal"):
		return "log." + name, true
	case path == zapPath && strings.HasPrefix(name, "Fatal") && isMethod(fn):
		return "zap " + name, true
	}
	return "", false
}

func isMethod(fn *types.Func) bool {
	sig, ok := fn.Type().(*types.Signature)
	return ok && sig.Recv() != nil
}
