package dnsresolve

import "testing"

func TestParseDMARC(t *testing.T) {
	rec := parseDMARC("v=DMARC1; p=reject; sp=quarantine; pct=50; rf=afrf")
	if rec.Policy != "reject" {
		t.Errorf("Policy = %q, want reject", rec.Policy)
	}
	if rec.SubdomainPolicy != "quarantine" {
		t.Errorf("SubdomainPolicy = %q, want quarantine", rec.SubdomainPolicy)
	}
	if rec.Percentage != 50 {
		t.Errorf("Percentage = %d, want 50", rec.Percentage)
	}
	if rec.ReportFormat != "afrf" {
		t.Errorf("ReportFormat = %q, want afrf", rec.ReportFormat)
	}
}

func TestParseDMARCDefaults(t *testing.T) {
	rec := parseDMARC("v=DMARC1; p=none")
	if rec.Percentage != 100 {
		t.Errorf("default Percentage = %d, want 100", rec.Percentage)
	}
	if rec.SubdomainPolicy != "" {
		t.Errorf("SubdomainPolicy should default empty, got %q", rec.SubdomainPolicy)
	}
}

func TestParsePercentage(t *testing.T) {
	v, err := parsePercentage(" 75 ")
	if err != nil || v != 75 {
		t.Errorf("parsePercentage(\" 75 \") = %d, %v, want 75, nil", v, err)
	}

	if _, err := parsePercentage("not-a-number"); err == nil {
		t.Error("expected error for non-numeric percentage")
	}
}

// MXRecord sort order is exercised indirectly through LookupMX, but LookupMX
// itself requires live DNS; unit coverage here stays at the parsing layer,
// which is where spec.md §4.1's only non-stdlib-wrapped logic lives.
