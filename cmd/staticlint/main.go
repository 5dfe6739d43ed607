// Command staticlint runs the exporter's static analysis suite.
//
// Usage, from the repository root:
//
//	go run ./cmd/staticlint ./...
//
// The suite combines the golang.org/x/tools passes, the SA class of
// staticcheck plus a few simple/stylecheck checks, the public analyzers
// asciicheck, bodyclose, exportloopref and nilerr, and noosexit, which
// forbids os.Exit in the main function of this module's commands.
package main

import (
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/composite"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/deepequalerrors"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/sortslice"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/testinggoroutine"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"

	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/gostaticanalysis/nilerr"
	"github.com/kyoh86/exportloopref"
	asciicheck "github.com/tdakkota/asciicheck"
	"github.com/timakin/bodyclose/passes/bodyclose"

	"github.com/Hobrus/svcexporter.git/cmd/staticlint/noosexit"
)

// extraChecks are picked from the simple and stylecheck classes.
var extraChecks = map[string]bool{
	"S1000":  true, // single-case select
	"S1009":  true, // redundant nil check before len
	"ST1005": true, // error strings
}

func analyzers() []*analysis.Analyzer {
	list := []*analysis.Analyzer{
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		composite.Analyzer,
		copylock.Analyzer,
		deepequalerrors.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		ifaceassert.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilfunc.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		shadow.Analyzer,
		shift.Analyzer,
		sortslice.Analyzer,
		stringintconv.Analyzer,
		structtag.Analyzer,
		testinggoroutine.Analyzer,
		tests.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		unusedresult.Analyzer,
	}

	for _, v := range staticcheck.Analyzers {
		if v.Analyzer != nil && strings.HasPrefix(v.Analyzer.Name, "SA") {
			list = append(list, v.Analyzer)
		}
	}
	for _, v := range simple.Analyzers {
		if v.Analyzer != nil && extraChecks[v.Analyzer.Name] {
			list = append(list, v.Analyzer)
		}
	}
	for _, v := range stylecheck.Analyzers {
		if v.Analyzer != nil && extraChecks[v.Analyzer.Name] {
			list = append(list, v.Analyzer)
		}
	}

	return append(list,
		bodyclose.Analyzer,
		exportloopref.Analyzer,
		nilerr.Analyzer,
		asciicheck.NewAnalyzer(),
		noosexit.Analyzer,
	)
}

func main() {
	multichecker.Main(analyzers()...)
}
