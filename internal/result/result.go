// Package result is the pure Status Mapper of spec.md §4.6: it projects an
// internal Verification Outcome into the public Result Record with a
// field set that never varies across code paths (spec.md §3's invariant).
package result

import (
	"strings"

	"emailguard/internal/classifier"
	"emailguard/internal/verify"
)

// Record is the public Result Record contract of spec.md §3/§6.2.
type Record struct {
	Status       string  `json:"status"`
	SubStatus    *string `json:"subStatus"`
	Account      string  `json:"account"`
	Domain       string  `json:"domain"`
	MXFound      string  `json:"mxFound"`
	MXRecord     *string `json:"mxRecord"`
	SMTPProvider string  `json:"smtpProvider"`
	DMARCPolicy  *string `json:"dmarcPolicy"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	FreeEmail    string  `json:"freeEmail"`
	Message      string  `json:"message"`
	IsValid      bool    `json:"isValid"`
	DidYouMean   string  `json:"didYouMean"`
	Email        string  `json:"email,omitempty"`
}

// Map renders Record from a completed verify.Outcome, per spec.md §4.6.
func Map(o verify.Outcome) Record {
	r := Record{
		Account:      o.Account,
		Domain:       o.Domain,
		MXFound:      mxFound(o.MXRecord),
		MXRecord:     nullableString(o.MXRecord),
		SMTPProvider: smtpProvider(o.MXRecord),
		DMARCPolicy:  o.DMARCPolicy,
		FreeEmail:    freeEmail(o.Domain, o.Err),
		IsValid:      o.Valid,
		DidYouMean:   "Unknown", // reserved, never populated — see DESIGN.md Open Question (ii)
	}

	r.FirstName, r.LastName = splitName(o.Account)

	switch {
	case o.Err == verify.ErrNone && o.Valid && o.IsCatchAll:
		r.Status = "catch-all"
		r.Message = "Valid corporate email domain with catch-all configuration"
	case o.Err == verify.ErrNone && o.Valid:
		r.Status = "valid"
		r.Message = "Valid email address"
	case o.Err == verify.ErrSystemError:
		r.Status = "error"
		tag := verify.ErrSystemError.String()
		r.SubStatus = &tag
		r.Message = canonicalMessage(o)
	default:
		r.Status = "invalid"
		tag := o.Err.String()
		r.SubStatus = &tag
		r.Message = canonicalMessage(o)
	}

	return r
}

func canonicalMessage(o verify.Outcome) string {
	if o.Reason != "" {
		return o.Reason
	}
	switch o.Err {
	case verify.ErrFormatError:
		return "Invalid email format"
	case verify.ErrDisposable:
		return "Disposable email domain"
	case verify.ErrNoMXRecord:
		return "No MX records found for domain"
	case verify.ErrDNSError:
		return "DNS lookup failed"
	case verify.ErrCatchAllDetected:
		return "Catch-all domain detected"
	case verify.ErrMailboxNotFound:
		return "Mailbox does not exist"
	case verify.ErrRateLimitExceeded:
		return "Rate limit exceeded"
	case verify.ErrSystemError:
		return "System error during verification"
	default:
		return "Verification failed"
	}
}

func mxFound(mxRecord string) string {
	if mxRecord == "" {
		return "No"
	}
	return "Yes"
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// smtpProvider is the lowercased leading dot-separated label of mxRecord,
// or "Unknown" when there is none, per spec.md §4.6.
func smtpProvider(mxRecord string) string {
	if mxRecord == "" {
		return "Unknown"
	}
	label := strings.SplitN(mxRecord, ".", 2)[0]
	return strings.ToLower(label)
}

// freeEmail is "Yes"/"No" for a known domain, "Unknown" only when the
// domain itself is unknown (syntax rejected), per spec.md §4.6.
func freeEmail(domain string, errKind verify.ErrorKind) string {
	if errKind == verify.ErrFormatError || domain == "" {
		return "Unknown"
	}
	if classifier.IsFree(domain) {
		return "Yes"
	}
	return "No"
}

// splitName implements spec.md §4.6's name-extraction algorithm: replace
// '.' and '_' with spaces, split on whitespace, drop empties, title-case
// each part.
func splitName(localPart string) (first, last string) {
	replaced := strings.Map(func(r rune) rune {
		if r == '.' || r == '_' {
			return ' '
		}
		return r
	}, localPart)

	var parts []string
	for _, f := range strings.Fields(replaced) {
		parts = append(parts, titleCase(f))
	}

	switch len(parts) {
	case 0:
		return "Unknown", "Unknown"
	case 1:
		return parts[0], "Unknown"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = toUpperRune(runes[0])
	return string(runes)
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
