package http

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/pkg/circuitbreaker"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSON_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing authorization header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"answer":"42"}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.CircuitBreakerConfig{}, time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var out struct {
		Answer string `json:"answer"`
	}
	err = c.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer token"}, map[string]string{"q": "x"}, &out)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out.Answer != "42" {
		t.Errorf("Answer = %q, want 42", out.Answer)
	}
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := NewClientWith(srv.Client(), nil)
	err := c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if !se.RateLimited() || se.Code() != http.StatusTooManyRequests {
		t.Errorf("unexpected status error: %v", se)
	}
	if se.Body != "slow down" {
		t.Errorf("Body = %q", se.Body)
	}
}

func TestDo_ServerErrorsTripBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          "1m",
	}, time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		err := c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
			t.Fatalf("call %d: expected 502 status error, got %v", i+1, err)
		}
	}

	err = c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestNewClient_InvalidTimeout(t *testing.T) {
	_, err := NewClient(config.CircuitBreakerConfig{Enabled: true, Timeout: "soon"}, time.Second)
	if err == nil {
		t.Fatal("expected an error for an invalid breaker timeout")
	}
}
