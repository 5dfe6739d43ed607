package noosexit

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	orig := module
	module = ""
	t.Cleanup(func() { module = orig })

	analysistest.Run(t, analysistest.TestData(), Analyzer, "cmd/app", "lib")
}
