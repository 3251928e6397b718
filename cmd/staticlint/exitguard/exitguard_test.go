package exitguard

import (
	"go/ast"
	"go/types"
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), Analyzer, "worker", "app")
}

func TestExitCall(t *testing.T) {
	sig := types.NewSignatureType(nil, nil, nil, nil, nil, false)
	zapPkg := types.NewPackage("go.uber.org/zap", "zap")
	logger := types.NewNamed(types.NewTypeName(0, zapPkg, "Logger", nil), types.NewStruct(nil, nil), nil)
	recv := types.NewVar(0, zapPkg, "log", types.NewPointer(logger))
	method := types.NewSignatureType(recv, nil, nil, nil, nil, false)

	tests := []struct {
		obj      types.Object
		name     string
		wantName string
		want     bool
	}{
		{types.NewFunc(0, types.NewPackage("os", "os"), "Exit", sig), "os.Exit", "os.Exit", true},
		{types.NewFunc(0, types.NewPackage("log", "log"), "Fatalln", sig), "log.Fatalln", "log.Fatalln", true},
		{types.NewFunc(0, zapPkg, "Fatal", method), "zap logger Fatal", "zap Fatal", true},
		{types.NewFunc(0, zapPkg, "Fatal", sig), "zap package func named Fatal", "", false},
		{types.NewFunc(0, types.NewPackage("fmt", "fmt"), "Println", sig), "fmt.Println", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &ast.Ident{Name: tt.obj.Name()}
			call := &ast.CallExpr{Fun: &ast.SelectorExpr{X: &ast.Ident{Name: "x"}, Sel: sel}}
			info := &types.Info{Uses: map[*ast.Ident]types.Object{sel: tt.obj}}

			gotName, got := exitCall(info, call)
			if got != tt.want || gotName != tt.wantName {
				t.Errorf("exitCall() = (%q, %v), want (%q, %v)", gotName, got, tt.wantName, tt.want)
			}
		})
	}
}

func TestExitCall_NilInfo(t *testing.T) {
	if _, ok := exitCall(nil, &ast.CallExpr{}); ok {
		t.Fatal("nil info must not report an exit")
	}
}
