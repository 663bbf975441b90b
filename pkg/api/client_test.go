package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"flagsync/pkg/telemetry"
)

func testTimeouts() Timeouts {
	return Timeouts{Probe: 2 * time.Second, Fetch: 2 * time.Second, Submit: 2 * time.Second}
}

func newTestClient(serverURL string) *Client {
	return NewClientWithDoer(Config{
		BaseURL:     serverURL,
		ClientKey:   "key-123",
		DimensionID: "dim-1",
		SDKVersion:  "1.2.3",
		Timeouts:    testTimeouts(),
	}, http.DefaultClient, log.New(io.Discard, "", 0))
}

type recordedRequest struct {
	Method          string
	Path            string
	Query           string
	IfModifiedSince string
	IfNoneMatch     string
	Body            []byte
}

// recordingHandler captures requests and replies from a scripted
// per-path response table.
type recordingHandler struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]func(w http.ResponseWriter, r *http.Request)
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.requests = append(h.requests, recordedRequest{
		Method:          r.Method,
		Path:            r.URL.Path,
		Query:           r.URL.RawQuery,
		IfModifiedSince: r.Header.Get("If-Modified-Since"),
		IfNoneMatch:     r.Header.Get("If-None-Match"),
		Body:            body,
	})
	fn := h.responses[r.Method+" "+r.URL.Path]
	h.mu.Unlock()
	if fn == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fn(w, r)
}

func (h *recordingHandler) last() recordedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[len(h.requests)-1]
}

func TestClient_EndpointCredentialPlacement(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"POST /users/configs": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"configs":{}}`))
		},
		"HEAD /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"abc"`)
		},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newTestClient(srv.URL)

	if _, _, err := c.FetchConfigs(context.Background(), map[string]interface{}{"user_id": "u"}, CacheHeaders{}); err != nil {
		t.Fatalf("fetch configs failed: %v", err)
	}
	if got := h.last().Query; got != "cfenc=key-123" {
		t.Errorf("configs request should carry the client key, got query %q", got)
	}

	if _, err := c.ProbeSettings(context.Background(), CacheHeaders{}); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if got := h.last().Query; got != "" {
		t.Errorf("settings request must not carry the client key, got query %q", got)
	}
}

func TestClient_ConditionalHeadersSent(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"GET /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotModified)
		},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newTestClient(srv.URL)

	since := CacheHeaders{LastModified: "Tue, 01 Aug 2023 00:00:00 GMT", ETag: `"v5"`}
	_, headers, err := c.FetchSettings(context.Background(), since)
	if !errors.Is(err, ErrNotModified) {
		t.Fatalf("expected ErrNotModified on 304, got %v", err)
	}
	if headers != since {
		t.Errorf("304 must keep the prior markers, got %+v", headers)
	}

	req := h.last()
	if req.IfModifiedSince != since.LastModified || req.IfNoneMatch != since.ETag {
		t.Errorf("conditional headers missing: %+v", req)
	}
}

func TestClient_ProbeFallsBackWhenHeadRejected(t *testing.T) {
	settings := `{"cf_account_enabled": true, "cf_skip_sdk": false}`
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"HEAD /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusMethodNotAllowed)
		},
		"GET /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"v2"`)
			w.Write([]byte(settings))
		},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newTestClient(srv.URL)

	res, err := c.ProbeSettings(context.Background(), CacheHeaders{ETag: `"v1"`})
	if err != nil {
		t.Fatalf("probe with fallback failed: %v", err)
	}
	if !res.Modified {
		t.Error("expected changed ETag to report modified")
	}
	if res.Headers.ETag != `"v2"` {
		t.Errorf("expected new markers from fallback, got %+v", res.Headers)
	}
	if h.last().Method != http.MethodGet {
		t.Errorf("expected GET fallback, got %s", h.last().Method)
	}
}

func TestClient_ProbeUnchangedMarkers(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"HEAD /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"v1"`)
		},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newTestClient(srv.URL)

	res, err := c.ProbeSettings(context.Background(), CacheHeaders{ETag: `"v1"`})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if res.Modified {
		t.Error("matching ETag should report unmodified")
	}

	// A server returning no markers at all is treated as changed.
	h.responses["HEAD /sdk-settings/dim-1"] = func(w http.ResponseWriter, r *http.Request) {}
	res, err = c.ProbeSettings(context.Background(), CacheHeaders{ETag: `"v1"`})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !res.Modified {
		t.Error("absent markers should be treated as modified")
	}
}

func TestClient_FetchSettingsParsesEnablement(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"GET /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"cf_account_enabled": true, "cf_skip_sdk": true, "extra": 1}`))
		},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := newTestClient(srv.URL)

	settings, _, err := c.FetchSettings(context.Background(), CacheHeaders{})
	if err != nil {
		t.Fatalf("fetch settings failed: %v", err)
	}
	if !settings.AccountEnabled || !settings.SkipSDK {
		t.Errorf("settings parsed wrong: %+v", settings)
	}
	if settings.Enabled() {
		t.Error("skip flag set means disabled regardless of account flag")
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
				"GET /sdk-settings/dim-1": func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
				},
			}}
			srv := httptest.NewServer(h)
			defer srv.Close()
			c := newTestClient(srv.URL)

			_, _, err := c.FetchSettings(context.Background(), CacheHeaders{})
			if err == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if IsRetryable(err) != tc.retryable {
				t.Errorf("status %d: expected retryable=%t", tc.status, tc.retryable)
			}
		})
	}
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := newTestClient(srv.URL)

	_, _, err := c.FetchSettings(context.Background(), CacheHeaders{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !IsRetryable(err) {
		t.Error("transport errors must be retryable")
	}
}

type staticUser struct{}

func (staticUser) UserSnapshot() map[string]interface{} {
	return map[string]interface{}{"user_id": "u1"}
}

func TestSubmitter_EventEnvelope(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){
		"POST /events": func(w http.ResponseWriter, r *http.Request) {},
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	s := &Submitter{Client: newTestClient(srv.URL), User: staticUser{}}
	ts := time.Unix(1700000000, 0).UTC()
	err := s.SendEvents(context.Background(), []telemetry.Event{
		{ID: "id-1", Name: "launch", Timestamp: ts, SessionID: "sess", UserID: "u1"},
	})
	if err != nil {
		t.Fatalf("send events failed: %v", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(h.last().Body, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload["sdk_version"] != "1.2.3" {
		t.Errorf("expected sdk version in envelope, got %v", payload["sdk_version"])
	}
	user, ok := payload["user"].(map[string]interface{})
	if !ok || user["user_id"] != "u1" {
		t.Errorf("expected user snapshot in envelope, got %v", payload["user"])
	}
	events, ok := payload["events"].([]interface{})
	if !ok || len(events) != 1 {
		t.Fatalf("expected one wire event, got %v", payload["events"])
	}
	ev := events[0].(map[string]interface{})
	if ev["name"] != "launch" || ev["timestamp"] != float64(ts.UnixMilli()) {
		t.Errorf("wire event mismatch: %v", ev)
	}
}

func TestSubmitter_EmptyBatchesSkipNetwork(t *testing.T) {
	h := &recordingHandler{responses: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	s := &Submitter{Client: newTestClient(srv.URL), User: staticUser{}}
	if err := s.SendEvents(context.Background(), nil); err != nil {
		t.Errorf("empty event batch should be a no-op, got %v", err)
	}
	if err := s.SendSummaries(context.Background(), nil); err != nil {
		t.Errorf("empty summary batch should be a no-op, got %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) != 0 {
		t.Errorf("expected no requests for empty batches, got %d", len(h.requests))
	}
}
