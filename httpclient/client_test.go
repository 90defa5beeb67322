package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Do_GETWithHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/liveboard" {
			t.Errorf("expected /api/liveboard, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("station"); got != "Gent-Sint-Pieters" {
			t.Errorf("expected station query, got %q", got)
		}
		if got := r.Header.Get("X-Collection-Status"); got != "success" {
			t.Errorf("expected request header, got %q", got)
		}
		if got := r.Header.Get("X-Env"); got != "test" {
			t.Errorf("expected default header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "orchestrator" {
			t.Errorf("expected default user agent, got %q", got)
		}
		_, _ = w.Write([]byte(`{"departures":3}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/api", Headers: map[string]string{"X-Env": "test"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := c.Do(context.Background(), Request{
		URL:     "/liveboard",
		Query:   map[string]string{"station": "Gent-Sint-Pieters"},
		Headers: []Header{{Name: "X-Collection-Status", Value: "success"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.IsSuccess() || !strings.Contains(string(resp.Body), "departures") {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestClient_Do_RepeatedHeadersKeepOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := strings.Join(r.Header.Values("X-Station"), ","); got != "Gent,Brugge" {
			t.Errorf("expected both X-Station values in order, got %q", got)
		}
		if got := strings.Join(r.Header.Values("X-Env"), ","); got != "staging" {
			t.Errorf("expected request header to replace default, got %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Headers: map[string]string{"X-Env": "test"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = c.Do(context.Background(), Request{
		URL: "/debug",
		Headers: []Header{
			{Name: "X-Station", Value: "Gent"},
			{Name: "X-Env", Value: "staging"},
			{Name: "X-Station", Value: "Brugge"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Do_NonSuccessReturnsResponseAndError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("cold start"))
	}))
	defer srv.Close()

	c, _ := New(Config{})
	resp, err := c.Do(context.Background(), Request{URL: srv.URL + "/health"})
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected response with 503, got %+v", resp)
	}
	if !IsRetryable(err) || StatusCodeOf(err) != 503 {
		t.Fatalf("expected retryable 503 error, got %v", err)
	}
}

func TestClient_Do_ContextDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, _ := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{URL: srv.URL})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := New(Config{})
	_, err := c.Do(context.Background(), Request{URL: url})
	var e *Error
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !asError(err, &e) || e.Code != ErrCodeConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func TestClient_Do_JSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		var m map[string]string
		_ = json.Unmarshal(b, &m)
		if m["status"] != "ok" {
			t.Errorf("unexpected body %s", b)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := New(Config{})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"status": "ok"}})
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %v %v", resp, err)
	}
}

func TestGetJSONAndPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"name":"collect","limit":` + r.URL.Query().Get("limit") + `}`))
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"run_id":"abc"}`))
		}
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL})
	type item struct {
		Name  string `json:"name"`
		Limit int    `json:"limit"`
	}
	got, err := GetJSON[item](context.Background(), c, "/pipelines/collect", map[string]string{"limit": "5"})
	if err != nil || got.Name != "collect" || got.Limit != 5 {
		t.Fatalf("unexpected GetJSON result %+v, %v", got, err)
	}

	started, err := PostJSON[map[string]string](context.Background(), c, "/pipelines/collect/runs", nil)
	if err != nil || started["run_id"] != "abc" {
		t.Fatalf("unexpected PostJSON result %v, %v", started, err)
	}
}

func TestClient_RateLimitWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	c, _ := New(Config{RateLimit: &RateLimitConfig{Rate: 0.001, Burst: 1}})
	if _, err := c.Do(context.Background(), Request{URL: srv.URL}); err != nil {
		t.Fatalf("expected first call within burst, got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, Request{URL: srv.URL}); !IsTimeout(err) {
		t.Fatalf("expected throttled call to time out, got %v", err)
	}
}
