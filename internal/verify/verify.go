// Package verify composes the per-address pipeline of spec.md §4.3: rate
// limit gate, syntax/disposable quick-reject, DNS/DMARC resolution, SMTP
// probe, and outcome synthesis.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"emailguard/internal/classifier"
	"emailguard/internal/dnsresolve"
	"emailguard/internal/emailaddr"
	"emailguard/internal/metrics"
	"emailguard/internal/ratelimit"
	"emailguard/internal/smtp"
)

// Outcome is the internal Verification Outcome of spec.md §3.
type Outcome struct {
	Valid       bool
	Err         ErrorKind
	Reason      string
	Account     string
	Domain      string
	MXRecord    string
	DMARCPolicy *string
	IsCatchAll  bool
	IsCorporate bool
	Logs        []smtp.StageLog
	DurationMS  int64
}

// Resolver is the subset of *dnsresolve.Resolver the pipeline depends on,
// narrowed to an interface so tests can substitute a fake without touching
// live DNS.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]dnsresolve.MXRecord, error)
	LookupDMARC(ctx context.Context, domain string) (*dnsresolve.DMARCRecord, error)
}

// Verifier wires together every collaborator of the pipeline. All fields are
// safe to leave nil except Resolver; nil Limiter/Throttle/Metrics simply
// skip that concern (used by tests that only want the SMTP/DNS path).
type Verifier struct {
	Resolver Resolver
	Limiter  ratelimit.Limiter
	Throttle *ratelimit.DomainThrottle
	Metrics  *metrics.Sink

	SMTPDeadline time.Duration
	HELODomain   string
	MailFrom     string
	Dialer       smtp.Dialer
	OnStage      func(smtp.StageLog)
}

// Verify runs spec.md §4.3's six steps for one address. callerID identifies
// the caller for rate-limiting (typically the request's source IP).
func (v *Verifier) Verify(ctx context.Context, callerID, rawAddress string) Outcome {
	start := time.Now()
	outcome := v.verify(ctx, callerID, rawAddress, start)
	outcome.DurationMS = time.Since(start).Milliseconds()
	if v.Metrics != nil {
		v.Metrics.Record(start, outcome.Valid)
	}
	return outcome
}

func (v *Verifier) verify(ctx context.Context, callerID, rawAddress string, start time.Time) Outcome {
	// Step 1: rate limit gate.
	if v.Limiter != nil {
		allowed, err := v.Limiter.Check(ctx, callerID)
		if err != nil {
			return Outcome{Err: ErrSystemError, Reason: fmt.Sprintf("rate limiter error: %v", err)}
		}
		if !allowed {
			return Outcome{Err: ErrRateLimitExceeded, Reason: "Rate limit exceeded"}
		}
	}

	// Step 2: syntax check.
	addr, ok := emailaddr.Parse(rawAddress)
	if !ok {
		return Outcome{Err: ErrFormatError, Reason: "Invalid email format", Account: addr.Local, Domain: addr.Domain}
	}

	// Step 3: disposable-domain check.
	if classifier.IsDisposable(addr.Domain) {
		return Outcome{Err: ErrDisposable, Reason: "Disposable email domain", Account: addr.Local, Domain: addr.Domain}
	}

	isCorporate := classifier.IsCorporate(addr.Domain)

	// Step 4: DMARC lookup and MX+SMTP run without ordering between them.
	var wg sync.WaitGroup
	var dmarcPolicy *string

	wg.Add(1)
	go func() {
		defer wg.Done()
		if v.Resolver == nil {
			return
		}
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		record, err := v.Resolver.LookupDMARC(dctx, addr.Domain)
		if err != nil || record == nil {
			return // recoverable-at-layer, per spec.md §4.1/§7
		}
		dmarcPolicy = &record.Policy
	}()

	smtpOutcome, mxRecord, smtpErr := v.probe(ctx, addr)

	wg.Wait()

	base := Outcome{
		Account:     addr.Local,
		Domain:      addr.Domain,
		MXRecord:    mxRecord,
		DMARCPolicy: dmarcPolicy,
		IsCorporate: isCorporate,
	}

	// Step 5: synthesis.
	if smtpErr != nil {
		kind, reason := classifySMTPError(smtpErr)
		base.Err = kind
		base.Reason = reason
		return base
	}

	switch smtpOutcome.Result {
	case smtp.ResultValid:
		base.Valid = true
		base.Logs = smtpOutcome.Logs
		return base
	case smtp.ResultCatchAllDetected:
		base.IsCatchAll = true
		base.Logs = smtpOutcome.Logs
		if isCorporate {
			base.Valid = true
			return base
		}
		base.Err = ErrCatchAllDetected
		base.Reason = "Catch-all domain detected"
		return base
	case smtp.ResultMailboxNotFound:
		base.Err = ErrMailboxNotFound
		base.Reason = "Mailbox does not exist"
		base.Logs = smtpOutcome.Logs
		return base
	default:
		base.Err = ErrSystemError
		base.Reason = "Unrecognized verification outcome"
		return base
	}
}

// probe resolves MX records and drives the SMTP state machine against the
// primary MX, per spec.md §4.1/§4.2. Errors from MX lookup are surfaced the
// way spec.md §4.3 step 4 requires: DnsError propagates as no_mx_record (if
// the set was empty) or dns_error (if the lookup itself failed).
func (v *Verifier) probe(ctx context.Context, addr emailaddr.Address) (*smtp.Outcome, string, error) {
	if v.Resolver == nil {
		return nil, "", errors.New("dns_error: resolver not configured")
	}

	mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	records, err := v.Resolver.LookupMX(mctx, addr.Domain)
	if err != nil {
		if errors.Is(err, dnsresolve.ErrNoMXRecords) {
			return nil, "", fmt.Errorf("no_mx_record: %w", err)
		}
		return nil, "", err // already carries a "dns_error: ..." prefix from LookupMX
	}
	primary := records[0].Exchange

	if v.Throttle != nil {
		if err := v.Throttle.Wait(ctx, addr.Domain); err != nil {
			return nil, primary, fmt.Errorf("connection_error: throttle wait cancelled: %w", err)
		}
	}

	opts := smtp.Options{
		Deadline:   v.SMTPDeadline,
		HELODomain: v.HELODomain,
		MailFrom:   v.MailFrom,
		Dialer:     v.Dialer,
		OnStage:    v.OnStage,
	}

	outcome, err := smtp.Verify(ctx, primary, addr.Domain, addr.Raw, opts)
	return outcome, primary, err
}

func classifySMTPError(err error) (ErrorKind, string) {
	switch {
	case errIsNoMX(err):
		return ErrNoMXRecord, "No MX records found for domain"
	case errHasPrefix(err, "dns_error"):
		return ErrDNSError, "DNS lookup failed"
	case errors.Is(err, smtp.ErrTimeout):
		return ErrTimeoutError, "Connection timed out"
	case errors.Is(err, smtp.ErrConnection):
		return ErrConnectionError, "Could not connect to mail server"
	case errors.Is(err, smtp.ErrGreeting):
		return ErrGreetingError, "Unexpected greeting from mail server"
	case errors.Is(err, smtp.ErrHelo):
		return ErrHeloError, "HELO rejected by mail server"
	case errors.Is(err, smtp.ErrMailFrom):
		return ErrMailFromError, "MAIL FROM rejected by mail server"
	case errors.Is(err, smtp.ErrRcptTo):
		return ErrRcptToError, "RCPT TO rejected by mail server"
	case errors.Is(err, smtp.ErrUnknown):
		return ErrUnknownError, "Unexpected response from mail server"
	default:
		return ErrUnknownError, err.Error()
	}
}

func errIsNoMX(err error) bool {
	return errHasPrefix(err, "no_mx_record")
}

func errHasPrefix(err error, prefix string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return len(msg) >= len(prefix) && msg[:len(prefix)] == prefix
}
