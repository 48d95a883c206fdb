// Package dnsresolve performs the MX and DMARC lookups that feed the
// verification pipeline (spec.md §4.1), grounded on the reference CLI's
// context-aware resolver use rather than the teacher's blocking net.LookupMX.
package dnsresolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// ErrNoMXRecords is the distinguished error for a domain with an empty (but
// successfully queried) MX record set.
var ErrNoMXRecords = errors.New("no_mx_record")

// MXRecord is one (priority, exchange) pair.
type MXRecord struct {
	Priority uint16
	Exchange string
}

// DMARCRecord is the parsed content of a domain's _dmarc TXT record.
type DMARCRecord struct {
	Policy          string
	SubdomainPolicy string
	Percentage      int
	ReportFormat    string
}

// Resolver looks up MX and DMARC records with a configurable timeout.
type Resolver struct {
	resolver *net.Resolver
}

// New returns a Resolver using the pure-Go DNS client so lookups honor
// context deadlines even under odd libc resolv.conf setups.
func New() *Resolver {
	return &Resolver{resolver: &net.Resolver{PreferGo: true}}
}

// LookupMX returns the MX records for domain sorted ascending by priority.
// An empty result set is reported as ErrNoMXRecords; any other lookup
// failure (NXDOMAIN, SERVFAIL, timeout) is wrapped and returned as-is, per
// spec.md §4.1 — no retry.
func (r *Resolver) LookupMX(ctx context.Context, domain string) ([]MXRecord, error) {
	raw, err := r.resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("dns_error: mx lookup for %s: %w", domain, err)
	}
	if len(raw) == 0 {
		return nil, ErrNoMXRecords
	}

	records := make([]MXRecord, len(raw))
	for i, mx := range raw {
		records[i] = MXRecord{
			Priority: mx.Pref,
			Exchange: strings.TrimSuffix(mx.Host, "."),
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Priority < records[j].Priority })
	return records, nil
}

// LookupDMARC queries TXT records at _dmarc.<domain> and parses the first
// one that begins with "v=DMARC1", per spec.md §4.1. A record may arrive
// split into several strings (TXT segments); they are joined without a
// separator before inspection. A missing record or lookup failure is never
// fatal: both return (nil, nil).
func (r *Resolver) LookupDMARC(ctx context.Context, domain string) (*DMARCRecord, error) {
	txts, err := r.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return nil, nil //nolint:nilerr // DMARC failures are recoverable-at-layer, per spec.md §4.1/§7.
	}

	for _, txt := range txts {
		joined := txt
		if !strings.HasPrefix(strings.ToLower(joined), "v=dmarc1") {
			continue
		}
		return parseDMARC(joined), nil
	}
	return nil, nil
}

func parseDMARC(record string) *DMARCRecord {
	out := &DMARCRecord{Policy: "none", Percentage: 100}

	for _, tag := range strings.Split(record, ";") {
		tag = strings.TrimSpace(tag)
		switch {
		case strings.HasPrefix(tag, "p="):
			out.Policy = strings.TrimSpace(strings.TrimPrefix(tag, "p="))
		case strings.HasPrefix(tag, "sp="):
			out.SubdomainPolicy = strings.TrimSpace(strings.TrimPrefix(tag, "sp="))
		case strings.HasPrefix(tag, "pct="):
			if v, err := parsePercentage(strings.TrimPrefix(tag, "pct=")); err == nil {
				out.Percentage = v
			}
		case strings.HasPrefix(tag, "rf="):
			out.ReportFormat = strings.TrimSpace(strings.TrimPrefix(tag, "rf="))
		}
	}
	return out
}

func parsePercentage(s string) (int, error) {
	s = strings.TrimSpace(s)
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}
