package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "kioskcm", "")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if _, err := Init(context.Background(), "", ""); err == nil {
		t.Fatalf("Init() without service name error = nil")
	}
}

func TestMiddlewareLogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := Middleware("kioskcm", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["path"] != "/v1/customers" || entry["method"] != "GET" || entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("log entry = %v", entry)
	}
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
		wantLen  int
	}{
		{endpoint: "collector:4318", wantLen: 2},
		{endpoint: "http://collector:4318", wantLen: 2},
		{endpoint: "https://collector:4318/custom/v1/traces", wantLen: 2},
		{endpoint: "http://", wantErr: true},
	}
	for _, tt := range tests {
		opts, err := exporterOptions(tt.endpoint)
		if (err != nil) != tt.wantErr {
			t.Fatalf("exporterOptions(%q) error = %v", tt.endpoint, err)
		}
		if !tt.wantErr && len(opts) != tt.wantLen {
			t.Fatalf("exporterOptions(%q) = %d options, want %d", tt.endpoint, len(opts), tt.wantLen)
		}
	}
}
