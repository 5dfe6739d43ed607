package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/config"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/encoder"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/probe"
	"github.com/Hobrus/svcexporter.git/internal/pkg/testutil"
)

func TestPrintBuildInfo_Defaults(t *testing.T) {
	buildVersion, buildDate, buildCommit = "", "", ""

	out := testutil.CaptureStdout(func() { printBuildInfo() })
	assert.Contains(t, out, "Build version: N/A")
	assert.Contains(t, out, "Build date: N/A")
	assert.Contains(t, out, "Build commit: N/A")
}

func TestPrintBuildInfo_WithValues(t *testing.T) {
	buildVersion, buildDate, buildCommit = "v1.2.3", "2025-01-02", "abcdef1"
	t.Cleanup(func() { buildVersion, buildDate, buildCommit = "", "", "" })

	out := testutil.CaptureStdout(func() { printBuildInfo() })
	assert.Contains(t, out, "Build version: v1.2.3")
	assert.Contains(t, out, "Build date: 2025-01-02")
	assert.Contains(t, out, "Build commit: abcdef1")
}

func TestBuildProbe(t *testing.T) {
	ctx := context.Background()

	_, err := buildProbe(ctx, &config.Config{})
	assert.Error(t, err)

	p, err := buildProbe(ctx, &config.Config{MetricsURL: "http://localhost:1/metrics-json"})
	require.NoError(t, err)
	assert.IsType(t, &probe.JSONProbe{}, p)

	p, err = buildProbe(ctx, &config.Config{
		MetricsURL: "http://localhost:1/metrics-json",
		Services:   []string{"nginx"},
	})
	require.NoError(t, err)
	assert.Equal(t, "json:http://localhost:1/metrics-json+systemd", p.Name())

	_, err = buildProbe(ctx, &config.Config{PostgresTargets: map[string]string{"main": "postgres://%zz"}})
	assert.Error(t, err)
}

func TestExporter_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"servers": {"total_monitored": 10, "online": 9}}`)
	}))
	defer upstream.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		ServerAddress:   "127.0.0.1:0",
		RefreshInterval: time.Minute,
		ProbeTimeout:    2 * time.Second,
		MetricsURL:      upstream.URL + "/metrics-json",
	}
	p, err := buildProbe(context.Background(), cfg)
	require.NoError(t, err)
	app := setupExporter(logger, cfg, p)

	scrape := func() string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		app.server.Handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, encoder.ContentType, w.Header().Get("Content-Type"))
		return w.Body.String()
	}

	before := scrape()
	assert.Contains(t, before, "\nachievement_servers_total 0\n")
	assert.Contains(t, before, "\nexporter_last_check_success 0\n")

	require.NoError(t, app.scheduler.RunOnce(context.Background()))

	after := scrape()
	assert.Contains(t, after, "\nachievement_servers_total 10\n")
	assert.Contains(t, after, "\nachievement_servers_online 9\n")
	assert.Contains(t, after, "\nthreshold_cpu_warning_percent 80\n")
	assert.Contains(t, after, "\nexporter_last_check_success 1\n")
	assert.Contains(t, after, "\nmetrics_exporter_reloads_total 1\n")
	assert.True(t, strings.HasPrefix(after, "# HELP exporter_build_info "))

	upstream.Close()
	require.Error(t, app.scheduler.RunOnce(context.Background()))

	stale := scrape()
	assert.Contains(t, stale, "\nachievement_servers_total 10\n")
	assert.Contains(t, stale, "\nexporter_last_check_success 0\n")
	assert.Contains(t, stale, "\nmetrics_exporter_reloads_total 1\n")
}
