package smtp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeDialer hands out one pre-wired net.Pipe connection per DialContext
// call, with a scripted server goroutine driving the other end — the
// net.Pipe harness pattern used throughout the retrieved pack's SMTP tests.
type fakeDialer struct {
	serve func(conn net.Conn)
}

func (d fakeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	go d.serve(server)
	return client, nil
}

// scriptedServer replies 220 on connect, 250 to every HELO/MAIL FROM, rcptCode
// to the first RCPT TO (the real recipient) and probeCode to the second (the
// catch-all probe).
func scriptedServer(rcptCode, probeCode int) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		rd := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 fake.mx ESMTP\r\n")

		rcptSeen := 0
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(cmd, "HELO"):
				fmt.Fprintf(conn, "250 hello\r\n")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				fmt.Fprintf(conn, "250 OK\r\n")
			case strings.HasPrefix(cmd, "RCPT TO"):
				rcptSeen++
				if rcptSeen == 1 {
					fmt.Fprintf(conn, "%d recipient response\r\n", rcptCode)
				} else {
					fmt.Fprintf(conn, "%d probe response\r\n", probeCode)
				}
			case strings.HasPrefix(cmd, "QUIT"):
				fmt.Fprintf(conn, "221 bye\r\n")
				return
			default:
				fmt.Fprintf(conn, "500 unrecognized\r\n")
			}
		}
	}
}

func TestVerifyValidMailbox(t *testing.T) {
	opts := Options{Dialer: fakeDialer{serve: scriptedServer(250, 550)}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.Result != ResultValid {
		t.Errorf("Result = %v, want %v", outcome.Result, ResultValid)
	}
}

func TestVerifyCatchAll(t *testing.T) {
	opts := Options{Dialer: fakeDialer{serve: scriptedServer(250, 250)}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.Result != ResultCatchAllDetected {
		t.Errorf("Result = %v, want %v", outcome.Result, ResultCatchAllDetected)
	}
}

func TestVerifyMailboxNotFound(t *testing.T) {
	opts := Options{Dialer: fakeDialer{serve: scriptedServer(550, 550)}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.Result != ResultMailboxNotFound {
		t.Errorf("Result = %v, want %v", outcome.Result, ResultMailboxNotFound)
	}
}

func TestVerifyGenericRcptError(t *testing.T) {
	// 421 is not in mailboxRejectCodes, so it should surface as ErrRcptTo.
	opts := Options{Dialer: fakeDialer{serve: scriptedServer(421, 421)}}
	_, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if !errors.Is(err, ErrRcptTo) {
		t.Errorf("err = %v, want wrapping ErrRcptTo", err)
	}
}

func TestVerifyConnectionError(t *testing.T) {
	opts := Options{Dialer: fakeDialer{serve: func(conn net.Conn) { conn.Close() }}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err == nil {
		t.Fatal("expected an error when the server closes before greeting")
	}
	if outcome == nil {
		t.Fatal("expected a non-nil Outcome even on failure")
	}
}

func TestVerifyMultilineReply(t *testing.T) {
	serve := func(conn net.Conn) {
		defer conn.Close()
		rd := bufio.NewReader(conn)
		fmt.Fprintf(conn, "220 fake.mx ESMTP\r\n")
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(cmd, "HELO"):
				fmt.Fprintf(conn, "250-hello there\r\n250-extension one\r\n250 extension two\r\n")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				fmt.Fprintf(conn, "250 OK\r\n")
			case strings.HasPrefix(cmd, "RCPT TO"):
				fmt.Fprintf(conn, "250 OK\r\n")
			case strings.HasPrefix(cmd, "QUIT"):
				fmt.Fprintf(conn, "221 bye\r\n")
				return
			}
		}
	}

	opts := Options{Dialer: fakeDialer{serve: serve}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err != nil {
		t.Fatalf("Verify returned error on multi-line HELO reply: %v", err)
	}
	if outcome.Result == "" {
		t.Fatal("expected a terminal result despite the multi-line HELO reply")
	}
}

func TestStageLogsRecorded(t *testing.T) {
	opts := Options{Dialer: fakeDialer{serve: scriptedServer(250, 550)}}
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if len(outcome.Logs) == 0 {
		t.Fatal("expected stage logs to be recorded")
	}
	if outcome.Logs[0].Stage != StageConnect {
		t.Errorf("first stage logged = %v, want %v", outcome.Logs[0].Stage, StageConnect)
	}
}

func TestVerifyDeadlineExpiry(t *testing.T) {
	// The fake peer accepts the connection and then hangs forever without
	// writing a greeting, modeling a black-hole MX (spec.md §8's boundary
	// behaviour: "a verification against a black-hole MX terminates with
	// timeout_error within deadline + ε and the socket is closed").
	unblock := make(chan struct{})
	hangingServe := func(conn net.Conn) {
		<-unblock
		conn.Close()
	}
	defer close(unblock)

	deadline := 100 * time.Millisecond
	opts := Options{Dialer: fakeDialer{serve: hangingServe}, Deadline: deadline}

	start := time.Now()
	outcome, err := Verify(context.Background(), "mx.example.com", "example.com", "user@example.com", opts)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want wrapping ErrTimeout", err)
	}
	if outcome == nil {
		t.Fatal("expected a non-nil Outcome even on timeout")
	}

	const epsilon = 2 * time.Second
	if elapsed > deadline+epsilon {
		t.Errorf("Verify took %v, want at most deadline+epsilon (%v)", elapsed, deadline+epsilon)
	}

	if len(outcome.Logs) == 0 {
		t.Fatal("expected a stage log describing the timed-out stage")
	}
	var greeting *StageLog
	for i := range outcome.Logs {
		if outcome.Logs[i].Stage == StageGreeting {
			greeting = &outcome.Logs[i]
		}
	}
	if greeting == nil {
		t.Fatal("expected a greeting stage log for the timed-out stage")
	}
	if greeting.Success {
		t.Errorf("timed-out stage log Success = true, want false")
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.setDefaults()
	if o.Deadline != 10*time.Second {
		t.Errorf("default Deadline = %v, want 10s", o.Deadline)
	}
	if o.HELODomain != "verify.local" {
		t.Errorf("default HELODomain = %q, want verify.local", o.HELODomain)
	}
	if o.MailFrom != "verify@verify.local" {
		t.Errorf("default MailFrom = %q, want verify@verify.local", o.MailFrom)
	}
	if o.Dialer == nil {
		t.Error("default Dialer should not be nil")
	}
}
