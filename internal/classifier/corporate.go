package classifier

import "strings"

// corporateDomains is the fixed allow-list from spec.md §4.3's
// isCorporateDomain heuristic: Fortune-tech/enterprise domains plus
// organisation-specific entries. .edu and .gov are handled separately in
// IsCorporate since they are suffix rules, not a finite set.
var corporateDomains = map[string]bool{
	"microsoft.com": true,
	"google.com":    true,
	"apple.com":     true,
	"amazon.com":    true,
	"meta.com":      true,
	"facebook.com":  true,
	"ibm.com":       true,
	"oracle.com":    true,
	"salesforce.com": true,
	"adobe.com":     true,
	"intel.com":     true,
	"cisco.com":     true,
	"sap.com":       true,
	"vmware.com":    true,
	"hp.com":        true,
	"dell.com":      true,
	"netflix.com":   true,
	"nvidia.com":    true,
	"uber.com":      true,
	"airbnb.com":    true,
	"linkedin.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"anthropic.com": true,
	"openai.com":    true,
	"stripe.com":    true,
	"shopify.com":   true,
	"atlassian.com": true,
	"slack.com":     true,
	"zoom.us":       true,
	"paypal.com":    true,
	"jpmorgan.com":  true,
	"goldmansachs.com": true,
	"bankofamerica.com": true,
	"accenture.com": true,
	"deloitte.com":  true,
	"pwc.com":       true,
	"kpmg.com":      true,
	"ey.com":        true,
	"mckinsey.com":  true,
}

// IsCorporate implements spec.md §4.3's isCorporateDomain: the fixed
// allow-list, or any domain ending in .edu or .gov.
func IsCorporate(domain string) bool {
	domain = strings.ToLower(domain)
	if corporateDomains[domain] {
		return true
	}
	return strings.HasSuffix(domain, ".edu") || strings.HasSuffix(domain, ".gov")
}
