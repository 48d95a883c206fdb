// Package httpapi is the HTTP surface of spec.md §6.1, grounded on
// forgedlabs-mail_sorter's verifier service: a gorilla/mux router, a CORS
// middleware applied router-wide, and a graceful-shutdown main server loop.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"emailguard/internal/config"
	"emailguard/internal/jobqueue"
	"emailguard/internal/ratelimit"
	"emailguard/internal/result"
	"emailguard/internal/store"
	"emailguard/internal/verify"
	"emailguard/internal/workerpool"
)

// inlineBulkThreshold is the largest batch size spec.md §6.3's "inline
// threshold" runs synchronously through the in-process worker pool,
// returning the aligned []result.Record directly (spec.md §6.1). Batches
// above it queue onto the Dispatcher/job store and are polled via
// GET /api/validate-emails/batch/:jobId, per SPEC_FULL.md §5.5/§7.3.
const inlineBulkThreshold = 25

// Server is the HTTP frontend over a Verifier, a bulk Dispatcher, and the
// job Store, per spec.md §6.1.
type Server struct {
	Verifier   *verify.Verifier
	Dispatcher *jobqueue.Dispatcher
	Store      *store.Postgres
	Limiter    ratelimit.Limiter
	Pool       *workerpool.Pool

	router *mux.Router

	rlMu     sync.RWMutex
	rlConfig config.RateLimitConfig
}

// NewServer builds a Server with its routes and middleware wired. rlConfig
// seeds the mutable GET/POST /api/rate-limit-config surface of spec.md §6.1.
// pool drives small bulk batches inline (spec.md §6.1); it may be shared
// with the Dispatcher's own async pool, as serve.go does.
func NewServer(v *verify.Verifier, d *jobqueue.Dispatcher, s *store.Postgres, limiter ratelimit.Limiter, rlConfig config.RateLimitConfig, pool *workerpool.Pool) *Server {
	srv := &Server{Verifier: v, Dispatcher: d, Store: s, Limiter: limiter, rlConfig: rlConfig, Pool: pool}
	srv.router = mux.NewRouter()
	srv.setupRoutes()
	return srv
}

func (s *Server) currentRLConfig() config.RateLimitConfig {
	s.rlMu.RLock()
	defer s.rlMu.RUnlock()
	return s.rlConfig
}

// Router exposes the underlying mux.Router, primarily for tests that want
// to drive it with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server on addr and blocks until ctx is
// cancelled, then shuts down gracefully, mirroring the teacher's reference
// signal-driven shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("emailguard: API listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/validate-email", s.handleValidateOne).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/validate-emails", s.handleValidateBulk).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/validate-emails/batch/{jobId}", s.handleBatchStatus).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/metrics", s.handleMetrics).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/rate-limit-config", s.handleRateLimitConfig).Methods("GET", "POST", "OPTIONS")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Use(corsMiddleware)
	s.router.Use(loggingMiddleware)
}

type validateRequest struct {
	Email string `json:"email"`
}

type validateBulkRequest struct {
	Emails []string `json:"emails"`
}

func (s *Server) handleValidateOne(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	callerID := clientID(r)
	outcome := s.Verifier.Verify(r.Context(), callerID, req.Email)

	s.writeRateLimitHeaders(w, callerID)

	if outcome.Err == verify.ErrRateLimitExceeded {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
		return
	}

	rec := result.Map(outcome)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rec)
}

// handleValidateBulk serves spec.md §6.1's bulk endpoint. Per spec.md §8's
// boundary table ("Bulk size 0, 1, 100, 101: accepted, accepted, accepted,
// rejected (400)"), only a decode failure or exceeding the configured
// MaxBulkEmails is a 400; size 0 is accepted and answered with an empty
// result array. Batches at or below inlineBulkThreshold run synchronously
// through the worker pool and return the aligned []result.Record the spec
// mandates; larger batches fall back to the async Dispatcher/job-store path
// of spec.md §6.3.
func (s *Server) handleValidateBulk(w http.ResponseWriter, r *http.Request) {
	var req validateBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "emails array is required")
		return
	}
	maxBulkEmails := s.currentRLConfig().MaxBulkEmails
	if len(req.Emails) > maxBulkEmails {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("maximum %d emails per batch", maxBulkEmails))
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if len(req.Emails) == 0 {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]result.Record{})
		return
	}

	if len(req.Emails) <= inlineBulkThreshold && s.Pool != nil {
		callerID := clientID(r)
		results := s.verifyInline(r.Context(), callerID, req.Emails)
		s.writeRateLimitHeaders(w, callerID)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(results)
		return
	}

	if s.Dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "bulk job queue not configured")
		return
	}

	jobID := uuid.NewString()
	if s.Store != nil {
		if err := s.Store.CreateJob(r.Context(), jobID, len(req.Emails)); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create job")
			return
		}
	}

	for _, email := range req.Emails {
		if err := s.Dispatcher.Enqueue(r.Context(), jobID, email); err != nil {
			log.Printf("httpapi: failed to enqueue %s for job %s: %v", email, jobID, err)
		}
	}

	s.writeRateLimitHeaders(w, clientID(r))
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"jobId": jobID})
}

// verifyInline runs emails through the shared worker pool and returns their
// Result Records aligned to input order, matching cmd/emailguard/bulk.go's
// submit/collect pattern.
func (s *Server) verifyInline(ctx context.Context, callerID string, emails []string) []result.Record {
	results := make([]result.Record, len(emails))

	var wg sync.WaitGroup
	for i, email := range emails {
		i, email := i, email
		future := s.Pool.Submit(func(taskCtx context.Context) (any, error) {
			return s.Verifier.Verify(taskCtx, callerID, email), nil
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			res := <-future
			if res.Err != nil {
				rec := result.Map(verify.Outcome{Err: verify.ErrSystemError, Reason: res.Err.Error()})
				rec.Email = email
				results[i] = rec
				return
			}
			rec := result.Map(res.Value.(verify.Outcome))
			rec.Email = email
			results[i] = rec
		}()
	}
	wg.Wait()

	return results
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "job store not configured")
		return
	}

	status, err := s.Store.GetJobStatus(r.Context(), jobID)
	if err == store.ErrJobNotFound {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch job status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.Verifier.Metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not configured")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Verifier.Metrics.Snapshot())
}

// rateLimitConfigPatch mirrors spec.md §6.1's Partial<config> POST body:
// every field optional, only the ones present are merged onto the current
// config before validation.
type rateLimitConfigPatch struct {
	RequestsPerHour *int `json:"requestsPerHour"`
	MaxBulkEmails   *int `json:"maxBulkEmails"`
	WindowMs        *int `json:"windowMs"`
	BlockDuration   *int `json:"blockDuration"`
}

func (s *Server) handleRateLimitConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var patch rateLimitConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		next := s.currentRLConfig()
		if patch.RequestsPerHour != nil {
			next.RequestsPerHour = *patch.RequestsPerHour
		}
		if patch.MaxBulkEmails != nil {
			next.MaxBulkEmails = *patch.MaxBulkEmails
		}
		if patch.WindowMs != nil {
			next.WindowMs = *patch.WindowMs
		}
		if patch.BlockDuration != nil {
			next.BlockDuration = *patch.BlockDuration
		}

		if badField := next.Validate(); badField != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is out of range", badField))
			return
		}

		s.rlMu.Lock()
		s.rlConfig = next
		s.rlMu.Unlock()
		s.Limiter.SetConfig(next.RequestsPerHour, next.Window())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Rate limit configuration updated",
			"config":  next,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.currentRLConfig())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeRateLimitHeaders(w http.ResponseWriter, callerID string) {
	current, limit, window, err := s.Limiter.Usage(context.Background(), callerID)
	if err != nil {
		return
	}
	l, remaining, reset := ratelimit.Headers(current, limit, window, time.Now())
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
