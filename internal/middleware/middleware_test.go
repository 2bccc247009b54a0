package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"media-viewer-engine/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatalf("fresh writer = %+v", rw)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("status = %d, first WriteHeader should win", rw.statusCode)
	}

	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 || rw.bytesWritten != 5 {
		t.Errorf("Write = %d, %v; bytesWritten %d", n, err, rw.bytesWritten)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap did not return the underlying writer")
	}
	if _, _, err := rw.Hijack(); err != http.ErrNotSupported {
		t.Errorf("Hijack on recorder = %v, want ErrNotSupported", err)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb\rc", "a b c"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\there", "tab\there"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoggerWritesW3CLine(t *testing.T) {
	buf := captureLog(t)
	h := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/navigation?to=next", nil)
	req.Header.Set("User-Agent", "test agent")
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{"10.0.0.1 POST /api/navigation to=next 201 2 ", `"test agent"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestLoggerSkips(t *testing.T) {
	tests := []struct {
		path   string
		config LoggingConfig
		skip   bool
	}{
		{"/blob/abc", DefaultLoggingConfig(), true},
		{"/blob/abc", LoggingConfig{LogBlobs: true}, false},
		{"/healthz", DefaultLoggingConfig(), false},
		{"/healthz", LoggingConfig{LogHealthChecks: false}, true},
		{"/api/session", LoggingConfig{SkipPaths: []string{"/api/"}}, true},
		{"/api/session", DefaultLoggingConfig(), false},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, tt.config); got != tt.skip {
			t.Errorf("shouldSkip(%q, %+v) = %v, want %v", tt.path, tt.config, got, tt.skip)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:51234"
	if got := getClientIP(req); got != "192.168.1.5" {
		t.Errorf("RemoteAddr ip = %q", got)
	}
	req.Header.Set("X-Real-IP", "172.16.0.9")
	if got := getClientIP(req); got != "172.16.0.9" {
		t.Errorf("X-Real-IP ip = %q", got)
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("plain = %q", got)
	}
	if got := escapeW3CField(`say "hi" now`); got != `"say ""hi"" now"` {
		t.Errorf("quoted = %q", got)
	}
}

func TestCompression(t *testing.T) {
	big := strings.Repeat(`{"slot":1},`, 200)
	tests := []struct {
		name        string
		contentType string
		body        string
		encoding    string
		wantGzip    bool
	}{
		{"large json", "application/json", big, "gzip", true},
		{"small json", "application/json", `{"a":1}`, "gzip", false},
		{"image", "image/jpeg", big, "gzip", false},
		{"client without gzip", "application/json", big, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusAccepted)
				io.WriteString(w, tt.body[:len(tt.body)/2])
				io.WriteString(w, tt.body[len(tt.body)/2:])
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tt.encoding != "" {
				req.Header.Set("Accept-Encoding", tt.encoding)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusAccepted {
				t.Errorf("status = %d, want 202", rec.Code)
			}
			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}
			body := rec.Body.Bytes()
			if gotGzip {
				zr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				body, _ = io.ReadAll(zr)
			}
			if string(body) != tt.body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(body), len(tt.body))
			}
		})
	}
}

func TestCompressionSkipsUpgradesAndBlobs(t *testing.T) {
	var gotWriter http.ResponseWriter
	h := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWriter = w
	}))
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/events", nil),
		httptest.NewRequest(http.MethodGet, "/blob/tok", nil),
	} {
		req.Header.Set("Accept-Encoding", "gzip")
		if req.URL.Path == "/api/events" {
			req.Header.Set("Upgrade", "websocket")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if gotWriter != rec {
			t.Errorf("%s: handler got a wrapped writer", req.URL.Path)
		}
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/blob/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/blob/{token}", "404")
	before := testutil.ToFloat64(counter)
	for _, tok := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blob/"+tok, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter moved by %v, want 3", got)
	}
}

func TestMetricsSkipPaths(t *testing.T) {
	h := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if testutil.ToFloat64(counter) != before {
		t.Error("/metrics request was recorded")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/", "/"},
		{"/api/session", "/api/session"},
		{"/blob/0b6f3c1e-aaaa", "/blob/{token}"},
		{"/api/slots/3/variant", "/api/slots/3/{path}"},
		{"/a/b/c/d/e/f", "/a/b/c/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMiddlewareChainTiming(t *testing.T) {
	buf := captureLog(t)
	h := Logger(DefaultLoggingConfig())(Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if !strings.Contains(buf.String(), " 200 0 ") {
		t.Errorf("log line = %q", buf.String())
	}
}
