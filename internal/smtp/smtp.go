// Package smtp drives the per-mailbox SMTP probe state machine described in
// spec.md §4.2: a single TCP connection, one recipient, CONNECT through QUIT,
// with the stages named by the enumerated Stage type rather than the
// teacher's numeric-stage callback style. Verify walks the stages in a fixed
// order as straight-line code; there is no separate transition table. The wire
// handling (multi-line replies, line-oriented reads) follows the reference
// CLI's SMTPConnection, which is the one pack implementation that gets
// multi-line continuations right.
package smtp

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
)

// Stage enumerates the SMTP conversation states of spec.md §4.2's table.
type Stage int

const (
	StageConnect Stage = iota
	StageGreeting
	StageHelo
	StageMailFrom
	StageRcptTo
	StageCatchAll
	StageQuit
)

func (s Stage) String() string {
	switch s {
	case StageConnect:
		return "connect"
	case StageGreeting:
		return "greeting"
	case StageHelo:
		return "helo"
	case StageMailFrom:
		return "mail_from"
	case StageRcptTo:
		return "rcpt_to"
	case StageCatchAll:
		return "catch_all_check"
	case StageQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// StageLog is one entry of spec.md §3's Stage Log Entry record.
type StageLog struct {
	Stage    Stage
	Start    time.Time
	End      time.Time
	Success  bool
	Err      error
	Request  string
	Response string
}

// Result is the terminal, non-error classification of a completed probe.
type Result string

const (
	ResultValid           Result = "valid"
	ResultCatchAllDetected Result = "catch_all_detected"
	ResultMailboxNotFound Result = "mailbox_not_found"
)

// Sentinel errors for every non-terminal-success SMTP-layer outcome in
// spec.md §7's taxonomy. Wrapped with stage context via fmt.Errorf("...: %w").
var (
	ErrConnection = errors.New("connection_error")
	ErrTimeout    = errors.New("timeout_error")
	ErrGreeting   = errors.New("greeting_error")
	ErrHelo       = errors.New("helo_error")
	ErrMailFrom   = errors.New("mail_from_error")
	ErrRcptTo     = errors.New("rcpt_to_error")
	ErrUnknown    = errors.New("unknown_error")
)

// mailboxRejectCodes are the RCPT TO reply codes spec.md §4.2 maps straight
// to the terminal MailboxNotFound result rather than a generic RcptToError.
var mailboxRejectCodes = map[int]bool{
	550: true, 551: true, 553: true, 501: true, 504: true, 511: true, 554: true,
}

// Dialer abstracts the transport so the verifier can be pointed through a
// SOCKS5 proxy (the teacher's IP-protection feature) without the state
// machine knowing about it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// directDialer is the default Dialer: a plain net.Dialer.
type directDialer struct{ d net.Dialer }

func (dd directDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return dd.d.DialContext(ctx, network, addr)
}

// NewDirectDialer returns the default, proxy-free Dialer.
func NewDirectDialer() Dialer { return directDialer{} }

// socks5Dialer adapts golang.org/x/net/proxy's synchronous SOCKS5 dialer to
// the context-aware Dialer interface, preserving the teacher's fail-safe
// behaviour: if the proxy dial fails there is no fallback to a direct
// connection.
type socks5Dialer struct {
	dialer proxy.Dialer
}

// NewSOCKS5Dialer builds a Dialer that always connects through addr.
func NewSOCKS5Dialer(addr, username, password string) (Dialer, error) {
	var auth *proxy.Auth
	if username != "" {
		auth = &proxy.Auth{User: username, Password: password}
	}
	d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
	}
	return socks5Dialer{dialer: d}, nil
}

func (sd socks5Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := sd.dialer.Dial(network, addr)
		ch <- result{conn, err}
	}()

	select {
	case res := <-ch:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Options configures one probe.
type Options struct {
	Deadline   time.Duration // overall conversation deadline, default 10s
	HELODomain string        // default "verify.local"
	MailFrom   string        // default "verify@<HELODomain>"
	Dialer     Dialer        // default direct TCP
	OnStage    func(StageLog) // optional observer, called as each stage completes
}

func (o *Options) setDefaults() {
	if o.Deadline <= 0 {
		o.Deadline = 10 * time.Second
	}
	if o.HELODomain == "" {
		o.HELODomain = "verify.local"
	}
	if o.MailFrom == "" {
		o.MailFrom = "verify@" + o.HELODomain
	}
	if o.Dialer == nil {
		o.Dialer = NewDirectDialer()
	}
}

// Outcome is the return value of a completed (possibly failed) probe.
type Outcome struct {
	Result Result
	Logs   []StageLog
}

var probeCounter uint64

// nextProbeToken returns a monotonic-high-entropy local-part prefix for the
// catch-all probe, per spec.md §4.2: "a short literal prefix plus a
// monotonic high-entropy token". The counter guarantees monotonicity across
// probes in one process; the random suffix guarantees the address has
// practically never been provisioned.
func nextProbeToken() string {
	n := atomic.AddUint64(&probeCounter, 1)
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		idx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[idx.Int64()]
	}
	return fmt.Sprintf("test%d%s", n, string(b))
}

// Verify drives the state machine of spec.md §4.2 against mxHost on port 25
// for recipient (whose domain is recipientDomain). It returns a terminal
// Outcome or a wrapped sentinel error; the socket is always closed exactly
// once, and at most one terminal resolution is produced, per the §4.2
// guarantees.
func Verify(ctx context.Context, mxHost, recipientDomain, recipient string, opts Options) (*Outcome, error) {
	opts.setDefaults()

	deadline := time.Now().Add(opts.Deadline)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	outcome := &Outcome{}
	emit := func(log StageLog) {
		outcome.Logs = append(outcome.Logs, log)
		if opts.OnStage != nil {
			opts.OnStage(log)
		}
	}

	start := time.Now()
	conn, err := opts.Dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		emit(StageLog{Stage: StageConnect, Start: start, End: time.Now(), Success: false, Err: err})
		if errors.Is(err, context.DeadlineExceeded) {
			return outcome, fmt.Errorf("%w: connect to %s", ErrTimeout, mxHost)
		}
		return outcome, fmt.Errorf("%w: connect to %s: %v", ErrConnection, mxHost, err)
	}
	defer conn.Close()
	emit(StageLog{Stage: StageConnect, Start: start, End: time.Now(), Success: true})

	conn.SetDeadline(deadline)
	rd := bufio.NewReader(conn)

	quit := func() {
		s := time.Now()
		_, werr := conn.Write([]byte("QUIT\r\n"))
		if werr == nil {
			readResponse(rd) // best-effort, ignore result and error
		}
		emit(StageLog{Stage: StageQuit, Start: s, End: time.Now(), Success: werr == nil})
	}

	// Stage: GREETING
	s := time.Now()
	resp, code, err := readResponse(rd)
	if err != nil {
		emit(StageLog{Stage: StageGreeting, Start: s, End: time.Now(), Success: false, Response: resp, Err: err})
		quit()
		return outcome, classifyReadError(err, ErrGreeting)
	}
	if code != 220 {
		emit(StageLog{Stage: StageGreeting, Start: s, End: time.Now(), Success: false, Response: resp})
		quit()
		return outcome, fmt.Errorf("%w: unexpected greeting %q", ErrGreeting, resp)
	}
	emit(StageLog{Stage: StageGreeting, Start: s, End: time.Now(), Success: true, Response: resp})

	// Stage: HELO
	heloCmd := fmt.Sprintf("HELO %s\r\n", opts.HELODomain)
	s = time.Now()
	resp, code, err = sendAndRead(conn, rd, heloCmd)
	if err != nil {
		emit(StageLog{Stage: StageHelo, Start: s, End: time.Now(), Success: false, Request: heloCmd, Err: err})
		quit()
		return outcome, classifyReadError(err, ErrHelo)
	}
	if code != 250 {
		emit(StageLog{Stage: StageHelo, Start: s, End: time.Now(), Success: false, Request: heloCmd, Response: resp})
		quit()
		return outcome, fmt.Errorf("%w: %q", ErrHelo, resp)
	}
	emit(StageLog{Stage: StageHelo, Start: s, End: time.Now(), Success: true, Request: heloCmd, Response: resp})

	// Stage: MAIL FROM
	mailFromCmd := fmt.Sprintf("MAIL FROM:<%s>\r\n", opts.MailFrom)
	s = time.Now()
	resp, code, err = sendAndRead(conn, rd, mailFromCmd)
	if err != nil {
		emit(StageLog{Stage: StageMailFrom, Start: s, End: time.Now(), Success: false, Request: mailFromCmd, Err: err})
		quit()
		return outcome, classifyReadError(err, ErrMailFrom)
	}
	if code != 250 {
		emit(StageLog{Stage: StageMailFrom, Start: s, End: time.Now(), Success: false, Request: mailFromCmd, Response: resp})
		quit()
		return outcome, fmt.Errorf("%w: %q", ErrMailFrom, resp)
	}
	emit(StageLog{Stage: StageMailFrom, Start: s, End: time.Now(), Success: true, Request: mailFromCmd, Response: resp})

	// Stage: RCPT TO
	rcptCmd := fmt.Sprintf("RCPT TO:<%s>\r\n", recipient)
	s = time.Now()
	resp, code, err = sendAndRead(conn, rd, rcptCmd)
	if err != nil {
		emit(StageLog{Stage: StageRcptTo, Start: s, End: time.Now(), Success: false, Request: rcptCmd, Err: err})
		quit()
		return outcome, classifyReadError(err, ErrRcptTo)
	}
	if code != 250 {
		emit(StageLog{Stage: StageRcptTo, Start: s, End: time.Now(), Success: false, Request: rcptCmd, Response: resp})
		quit()
		if mailboxRejectCodes[code] || strings.Contains(strings.ToLower(resp), "does not exist") {
			outcome.Result = ResultMailboxNotFound
			return outcome, nil
		}
		return outcome, fmt.Errorf("%w: %q", ErrRcptTo, resp)
	}
	emit(StageLog{Stage: StageRcptTo, Start: s, End: time.Now(), Success: true, Request: rcptCmd, Response: resp})

	// Stage: CATCH_ALL_CHECK
	probe := fmt.Sprintf("%s@%s", nextProbeToken(), recipientDomain)
	probeCmd := fmt.Sprintf("RCPT TO:<%s>\r\n", probe)
	s = time.Now()
	resp, code, err = sendAndRead(conn, rd, probeCmd)
	quit()
	if err != nil {
		emit(StageLog{Stage: StageCatchAll, Start: s, End: time.Now(), Success: false, Request: probeCmd, Err: err})
		// A broken probe doesn't undo a confirmed-deliverable recipient;
		// treat it conservatively as "not catch-all".
		outcome.Result = ResultValid
		return outcome, nil
	}
	if code == 250 {
		emit(StageLog{Stage: StageCatchAll, Start: s, End: time.Now(), Success: true, Request: probeCmd, Response: resp})
		outcome.Result = ResultCatchAllDetected
		return outcome, nil
	}
	emit(StageLog{Stage: StageCatchAll, Start: s, End: time.Now(), Success: true, Request: probeCmd, Response: resp})
	outcome.Result = ResultValid
	return outcome, nil
}

func sendAndRead(conn net.Conn, rd *bufio.Reader, cmd string) (string, int, error) {
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", 0, err
	}
	return readResponse(rd)
}

// readResponse reads a (possibly multi-line) SMTP reply, per spec.md §4.2:
// lines "250-..." continue, the final line has a space (not hyphen) after
// the 3-digit code.
func readResponse(rd *bufio.Reader) (string, int, error) {
	var b strings.Builder
	var code int

	for {
		line, err := rd.ReadString('\n')
		if line != "" {
			b.WriteString(line)
		}
		if err != nil {
			return b.String(), code, err
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if len(trimmed) < 3 {
			return b.String(), code, fmt.Errorf("%w: malformed reply %q", ErrUnknown, trimmed)
		}
		c, convErr := strconv.Atoi(trimmed[:3])
		if convErr != nil {
			return b.String(), code, fmt.Errorf("%w: non-numeric reply code %q", ErrUnknown, trimmed)
		}
		code = c

		if len(trimmed) == 3 || trimmed[3] == ' ' {
			return b.String(), code, nil
		}
		// trimmed[3] == '-' : multi-line continuation, keep reading.
	}
}

func classifyReadError(err error, stageErr error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, ErrUnknown) {
		return err
	}
	return fmt.Errorf("%w: %v", stageErr, err)
}
