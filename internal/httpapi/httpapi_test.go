package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emailguard/internal/config"
	"emailguard/internal/dnsresolve"
	"emailguard/internal/metrics"
	"emailguard/internal/ratelimit"
	"emailguard/internal/verify"
	"emailguard/internal/workerpool"
)

type fakeResolver struct {
	mx []dnsresolve.MXRecord
}

func (f fakeResolver) LookupMX(ctx context.Context, domain string) ([]dnsresolve.MXRecord, error) {
	return f.mx, nil
}

func (f fakeResolver) LookupDMARC(ctx context.Context, domain string) (*dnsresolve.DMARCRecord, error) {
	return nil, nil
}

type fakeDialer struct{}

func (fakeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		buf := make([]byte, 4096)
		server.Write([]byte("220 fake.mx ESMTP\r\n"))
		rcptSeen := 0
		for {
			n, err := server.Read(buf)
			if err != nil {
				return
			}
			cmd := string(buf[:n])
			switch {
			case hasPrefix(cmd, "RCPT TO"):
				rcptSeen++
				if rcptSeen == 1 {
					server.Write([]byte("250 OK\r\n"))
				} else {
					server.Write([]byte("550 no such user\r\n"))
				}
			case hasPrefix(cmd, "QUIT"):
				server.Write([]byte("221 bye\r\n"))
				return
			default:
				server.Write([]byte("250 OK\r\n"))
			}
		}
	}()
	return client, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func newTestServer() *Server {
	v := &verify.Verifier{
		Resolver:     fakeResolver{mx: []dnsresolve.MXRecord{{Exchange: "mx.example.com"}}},
		Limiter:      ratelimit.NewMemory(100, time.Hour),
		Metrics:      metrics.New(),
		SMTPDeadline: 2 * time.Second,
		HELODomain:   "test.local",
		MailFrom:     "verify@test.local",
		Dialer:       fakeDialer{},
	}
	rlConfig := config.RateLimitConfig{
		RequestsPerHour: 100,
		MaxBulkEmails:   100,
		WindowMs:        3600_000,
		BlockDuration:   3600_000,
	}
	pool := workerpool.New(4, 16)
	return NewServer(v, nil, nil, v.Limiter, rlConfig, pool)
}

func TestHandleValidateOne(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string]string{"email": "user@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/validate-email", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got["status"] != "valid" {
		t.Errorf("status field = %v, want valid", got["status"])
	}

	if rec.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("expected X-RateLimit-Limit header on a verification response")
	}
}

func TestHandleValidateOneMissingEmail(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/validate-email", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleValidateBulkInline(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string][]string{"emails": {"user@example.com", "other@example.com"}})
	req := httptest.NewRequest(http.MethodPost, "/api/validate-emails", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	if got[0]["email"] != "user@example.com" || got[1]["email"] != "other@example.com" {
		t.Errorf("results not aligned to input order: %+v", got)
	}
}

func TestHandleValidateBulkEmpty(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(map[string][]string{"emails": {}})
	req := httptest.NewRequest(http.MethodPost, "/api/validate-emails", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(results) = %d, want 0", len(got))
	}
}

func TestHandleValidateBulkExceedsMax(t *testing.T) {
	s := newTestServer()
	emails := make([]string, 200)
	for i := range emails {
		emails[i] = "user@example.com"
	}
	body, _ := json.Marshal(map[string][]string{"emails": emails})
	req := httptest.NewRequest(http.MethodPost, "/api/validate-emails", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/api/validate-email", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header on preflight response")
	}
}

func TestRateLimitConfigRoundTrip(t *testing.T) {
	s := newTestServer()

	body, _ := json.Marshal(map[string]int{"requestsPerHour": 42, "windowMs": 120_000})
	postReq := httptest.NewRequest(http.MethodPost, "/api/rate-limit-config", bytes.NewReader(body))
	postRec := httptest.NewRecorder()
	s.Router().ServeHTTP(postRec, postReq)
	if postRec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, want %d; body=%s", postRec.Code, http.StatusOK, postRec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/rate-limit-config", nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)

	var got map[string]any
	json.Unmarshal(getRec.Body.Bytes(), &got)
	if int(got["requestsPerHour"].(float64)) != 42 {
		t.Errorf("requestsPerHour = %v, want 42", got["requestsPerHour"])
	}
	if int(got["windowMs"].(float64)) != 120_000 {
		t.Errorf("windowMs = %v, want 120000", got["windowMs"])
	}
}

func TestRateLimitConfigRejectsOutOfRange(t *testing.T) {
	s := newTestServer()

	body, _ := json.Marshal(map[string]int{"requestsPerHour": 0})
	req := httptest.NewRequest(http.MethodPost, "/api/rate-limit-config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var got map[string]string
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["error"] == "" {
		t.Error("expected error message naming the bad field")
	}
}
