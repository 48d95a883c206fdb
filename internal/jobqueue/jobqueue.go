// Package jobqueue is the Redis-backed bulk job dispatcher of spec.md §4.5,
// adapted from the teacher's main.go BRPOP main loop and its ZSET retry
// monitor. The teacher greylists on SMTP 450/451/421; this system's error
// taxonomy puts every RCPT TO reply other than 250 and the mailbox-not-found
// codes into a single RcptToError bucket, 4xx and 5xx alike, so retries here
// key on that one ErrorKind rather than the teacher's three raw SMTP codes.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"emailguard/internal/result"
	"emailguard/internal/verify"
	"emailguard/internal/workerpool"
)

const (
	mainQueue  = "emailguard:jobs"
	retryQueue = "emailguard:retry"
	retryDelay = 15 * time.Minute
)

// Job is one bulk-verification unit, queued by JobID+address.
type Job struct {
	JobID string `json:"jobId"`
	Email string `json:"email"`
}

// Store persists job results; implemented by internal/store.Postgres in
// production and satisfiable by a map-backed fake in tests.
type Store interface {
	SaveResult(ctx context.Context, jobID, email string, r result.Record) error
}

// Dispatcher drains mainQueue via BRPOP, verifies each job through the
// shared worker pool, and persists results, per spec.md §4.5's bulk
// pipeline. A single retry pass handles RcptToError the way the teacher's
// RetryMonitor handles greylisted codes.
type Dispatcher struct {
	Redis    *redis.Client
	Verifier *verify.Verifier
	Pool     *workerpool.Pool
	Store    Store

	// RetryCheckInterval governs how often the retry ZSET is scanned.
	RetryCheckInterval time.Duration
}

// NewDispatcher wires a Dispatcher with the teacher's 30-second retry scan
// cadence as the default.
func NewDispatcher(rdb *redis.Client, v *verify.Verifier, pool *workerpool.Pool, store Store) *Dispatcher {
	return &Dispatcher{
		Redis:              rdb,
		Verifier:           v,
		Pool:               pool,
		Store:              store,
		RetryCheckInterval: 30 * time.Second,
	}
}

// Enqueue pushes a new job for a jobID/email pair onto the main queue. An
// empty jobID is replaced with a freshly minted one, which is not returned to
// the caller, so multi-email bulk submissions pass their own jobID through.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID, email string) error {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	payload, err := json.Marshal(Job{JobID: jobID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return d.Redis.LPush(ctx, mainQueue, string(payload)).Err()
}

// Run drives the BRPOP main loop until ctx is cancelled. It should run in
// its own goroutine; RunRetryMonitor should run alongside it in another.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := d.Redis.BRPop(ctx, 5*time.Second, mainQueue).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("jobqueue: BRPOP error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			log.Printf("jobqueue: malformed job payload: %v", err)
			continue
		}

		d.dispatch(ctx, job)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, job Job) {
	future := d.Pool.Submit(func(taskCtx context.Context) (any, error) {
		outcome := d.Verifier.Verify(taskCtx, "bulk:"+job.JobID, job.Email)
		return outcome, nil
	})

	go func() {
		res := <-future
		if res.Err != nil {
			log.Printf("jobqueue: job %s/%s did not run: %v", job.JobID, job.Email, res.Err)
			return
		}
		outcome := res.Value.(verify.Outcome)

		if outcome.Err == verify.ErrRcptToError {
			d.scheduleRetry(ctx, job)
			return
		}

		rec := result.Map(outcome)
		rec.Email = job.Email
		if err := d.Store.SaveResult(ctx, job.JobID, job.Email, rec); err != nil {
			log.Printf("jobqueue: failed to persist result for %s: %v", job.Email, err)
		}
	}()
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, job Job) {
	payload, err := json.Marshal(job)
	if err != nil {
		log.Printf("jobqueue: failed to marshal retry job: %v", err)
		return
	}
	retryAt := float64(time.Now().Add(retryDelay).Unix())
	if err := d.Redis.ZAdd(ctx, retryQueue, redis.Z{Score: retryAt, Member: string(payload)}).Err(); err != nil {
		log.Printf("jobqueue: failed to schedule retry for %s: %v", job.Email, err)
	}
}

// RunRetryMonitor scans retryQueue on RetryCheckInterval and re-pushes any
// job whose retry time has arrived back onto mainQueue, mirroring the
// teacher's RetryMonitor goroutine.
func (d *Dispatcher) RunRetryMonitor(ctx context.Context) {
	interval := d.RetryCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.drainReady(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) drainReady(ctx context.Context) {
	now := time.Now().Unix()
	items, err := d.Redis.ZRangeByScore(ctx, retryQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		log.Printf("jobqueue: retry scan failed: %v", err)
		return
	}

	for _, item := range items {
		removed, err := d.Redis.ZRem(ctx, retryQueue, item).Result()
		if err != nil || removed == 0 {
			continue // another dispatcher instance already claimed it
		}
		if err := d.Redis.LPush(ctx, mainQueue, item).Err(); err != nil {
			log.Printf("jobqueue: failed to requeue retry item: %v", err)
			d.Redis.ZAdd(ctx, retryQueue, redis.Z{Score: float64(now + int64(retryDelay.Seconds())), Member: item})
		}
	}
}
