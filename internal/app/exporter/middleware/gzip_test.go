package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestGzipMiddleware_CompressesWhenAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GzipMiddleware())

	payload := "# HELP services_running Number of running services\nservices_running 3\n"
	router.GET("/metrics", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(payload))
	})

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response")
	}

	gr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	out, _ := io.ReadAll(gr)
	_ = gr.Close()
	if string(out) != payload {
		t.Fatalf("unexpected body: %s", out)
	}
}

func TestGzipMiddleware_PlainWhenNotAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GzipMiddleware())
	router.GET("/health", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(`{"status":"healthy"}`))
	})

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "" {
		t.Fatalf("did not expect compression")
	}
	if rr.Body.String() != `{"status":"healthy"}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestGzipMiddleware_PanicStillYields500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, order := range []string{"recovery first", "gzip first"} {
		t.Run(order, func(t *testing.T) {
			router := gin.New()
			if order == "recovery first" {
				router.Use(gin.RecoveryWithWriter(io.Discard), GzipMiddleware())
			} else {
				router.Use(GzipMiddleware(), gin.RecoveryWithWriter(io.Discard))
			}
			router.GET("/metrics", func(c *gin.Context) {
				panic("encoder blew up")
			})

			req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status=%d, want 500", rr.Code)
			}
		})
	}
}
