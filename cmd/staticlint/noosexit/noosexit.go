// Package noosexit reports direct os.Exit calls in the main function of this
// module's commands. Commands must stop through logger.Fatal or by returning
// from main so deferred shutdown still runs in tests.
package noosexit

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const defaultModule = "github.com/Hobrus/svcexporter.git"

var Analyzer = &analysis.Analyzer{
	Name:     "noosexit",
	Doc:      "forbid direct calls to os.Exit in main function of package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var module string

func init() {
	Analyzer.Flags.StringVar(&module, "module", defaultModule, "only check packages under this import path prefix")
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" || !strings.HasPrefix(pass.Pkg.Path(), module) {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if fn.Recv != nil || fn.Name.Name != "main" || fn.Body == nil {
			return
		}
		// generated test mains live outside cmd/
		if !strings.Contains(filepath.ToSlash(pass.Fset.Position(fn.Pos()).Filename), "/cmd/") {
			return
		}

		ast.Inspect(fn.Body, func(nn ast.Node) bool {
			call, ok := nn.(*ast.CallExpr)
			if !ok {
				return true
			}
			if isOSExit(pass, call) {
				pass.Reportf(call.Lparen, "запрещён прямой вызов os.Exit в функции main пакета main")
			}
			return true
		})
	})
	return nil, nil
}

func isOSExit(pass *analysis.Pass, call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Exit" {
		return false
	}
	fn, ok := pass.TypesInfo.ObjectOf(sel.Sel).(*types.Func)
	return ok && fn.Pkg() != nil && fn.Pkg().Path() == "os"
}
