package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestPing(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server, _ := newTestServer(t, "")

	rec := get(server, "/ping")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if rec.Body.String() != "pong" {
		t.Errorf("body = %q, want pong", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server, _ := newTestServer(t, "")

	rec := get(server, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}

	if health.Status != "healthy" || health.ServiceName != "lexhub" {
		t.Errorf("health = %+v, want healthy lexhub", health)
	}
}

func TestReady(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server, _ := newTestServer(t, "")

	rec := get(server, "/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if rec.Body.String() != "ready" {
		t.Errorf("body = %q, want ready", rec.Body.String())
	}
}

func TestHealthEndpointsBypassAuth(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server, _ := newTestServer(t, "s3cret")

	for _, target := range []string{"/ping", "/ready", "/health"} {
		if rec := get(server, target); rec.Code != http.StatusOK {
			t.Errorf("GET %s without credentials = %d, want 200", target, rec.Code)
		}
	}

	// Business endpoints stay protected
	if rec := get(server, "/api/v1/stats"); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/v1/stats without credentials = %d, want 401", rec.Code)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server, _ := newTestServer(t, "")

	rec := get(server, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	if code := decodeErrorCode(t, rec); code != CodeNotFound {
		t.Errorf("error code = %q, want %q", code, CodeNotFound)
	}
}

func TestServerConfigValidate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := testServerConfig("").Validate(); err != nil {
		t.Fatalf("Validate() on a complete config: %v", err)
	}

	bad := testServerConfig("")
	bad.Port = 0

	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted port 0")
	}

	bad = testServerConfig("")
	bad.MaxRequestSize = 0

	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted zero max request size")
	}
}
