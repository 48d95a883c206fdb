package result

import (
	"testing"

	"emailguard/internal/verify"
)

func TestMapValid(t *testing.T) {
	o := verify.Outcome{Valid: true, Account: "john.doe", Domain: "example.com", MXRecord: "mx1.example.com"}
	r := Map(o)

	if r.Status != "valid" {
		t.Errorf("Status = %q, want valid", r.Status)
	}
	if !r.IsValid {
		t.Error("IsValid should be true")
	}
	if r.SubStatus != nil {
		t.Errorf("SubStatus = %v, want nil", r.SubStatus)
	}
	if r.FirstName != "John" || r.LastName != "Doe" {
		t.Errorf("names = %q/%q, want John/Doe", r.FirstName, r.LastName)
	}
	if r.MXFound != "Yes" {
		t.Errorf("MXFound = %q, want Yes", r.MXFound)
	}
}

func TestMapFormatError(t *testing.T) {
	o := verify.Outcome{Err: verify.ErrFormatError, Reason: "Invalid email format"}
	r := Map(o)

	if r.Status != "invalid" {
		t.Errorf("Status = %q, want invalid", r.Status)
	}
	if r.SubStatus == nil || *r.SubStatus != "format_error" {
		t.Errorf("SubStatus = %v, want format_error", r.SubStatus)
	}
	if r.MXFound != "No" || r.MXRecord != nil {
		t.Error("format errors should report no MX data")
	}
	if r.FreeEmail != "Unknown" {
		t.Errorf("FreeEmail = %q, want Unknown for a rejected address", r.FreeEmail)
	}
	if r.FirstName != "Unknown" || r.LastName != "Unknown" {
		t.Errorf("names = %q/%q, want Unknown/Unknown for an empty account", r.FirstName, r.LastName)
	}
}

func TestMapCatchAllCorporateIsValid(t *testing.T) {
	o := verify.Outcome{Account: "jane", Domain: "microsoft.com", IsCatchAll: true, IsCorporate: true, Valid: true}
	r := Map(o)

	if r.Status != "catch-all" {
		t.Errorf("Status = %q, want catch-all", r.Status)
	}
	if !r.IsValid {
		t.Error("a corporate catch-all domain should still report IsValid=true")
	}
}

func TestMapCatchAllNonCorporateIsInvalid(t *testing.T) {
	o := verify.Outcome{Account: "jane", Domain: "example.com", IsCatchAll: true, Err: verify.ErrCatchAllDetected}
	r := Map(o)

	if r.Status != "invalid" {
		t.Errorf("Status = %q, want invalid", r.Status)
	}
	if r.SubStatus == nil || *r.SubStatus != "catch_all_detected" {
		t.Errorf("SubStatus = %v, want catch_all_detected", r.SubStatus)
	}
	if r.IsValid {
		t.Error("a non-corporate catch-all should not report IsValid=true")
	}
}

func TestMapSystemError(t *testing.T) {
	o := verify.Outcome{Err: verify.ErrSystemError, Reason: "boom"}
	r := Map(o)

	if r.Status != "error" {
		t.Errorf("Status = %q, want error", r.Status)
	}
	if r.Message != "boom" {
		t.Errorf("Message = %q, want boom", r.Message)
	}
}

func TestSplitNameVariants(t *testing.T) {
	cases := []struct {
		local          string
		first, last    string
	}{
		{"", "Unknown", "Unknown"},
		{"john", "John", "Unknown"},
		{"john.doe", "John", "Doe"},
		{"john_doe_smith", "John", "Doe Smith"},
		{"...", "Unknown", "Unknown"},
	}
	for _, c := range cases {
		first, last := splitName(c.local)
		if first != c.first || last != c.last {
			t.Errorf("splitName(%q) = %q/%q, want %q/%q", c.local, first, last, c.first, c.last)
		}
	}
}

func TestSMTPProvider(t *testing.T) {
	if got := smtpProvider("mx1.mail.example.com"); got != "mx1" {
		t.Errorf("smtpProvider = %q, want mx1", got)
	}
	if got := smtpProvider(""); got != "Unknown" {
		t.Errorf("smtpProvider(\"\") = %q, want Unknown", got)
	}
}
