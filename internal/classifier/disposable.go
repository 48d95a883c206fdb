package classifier

import "strings"

// disposableDomains is a compile-time table of throwaway-address providers,
// per spec.md §4.3 step 3 and §9's instruction to treat these as enumerated
// configuration rather than inline scatter.
var disposableDomains = map[string]bool{
	"mailinator.com":       true,
	"temp-mail.org":        true,
	"tempmail.com":         true,
	"tempmail.net":         true,
	"guerrillamail.com":    true,
	"guerrillamail.info":   true,
	"guerrillamail.biz":    true,
	"10minutemail.com":     true,
	"10minutemail.net":     true,
	"throwawaymail.com":    true,
	"yopmail.com":          true,
	"yopmail.fr":           true,
	"trashmail.com":        true,
	"trashmail.net":        true,
	"getnada.com":          true,
	"sharklasers.com":      true,
	"dispostable.com":      true,
	"maildrop.cc":          true,
	"fakeinbox.com":        true,
	"mailnesia.com":        true,
	"mintemail.com":        true,
	"mytemp.email":         true,
	"spamgourmet.com":      true,
	"mohmal.com":           true,
	"emailondeck.com":      true,
	"tempinbox.com":        true,
	"moakt.com":            true,
	"discardmail.com":      true,
	"tempr.email":          true,
	"burnermail.io":        true,
	"mailcatch.com":        true,
	"mail-temporaire.fr":   true,
	"jetable.org":          true,
	"einrot.com":           true,
	"spam4.me":             true,
	"mailforspam.com":      true,
	"anonbox.net":          true,
	"mailnator.com":        true,
	"tempemail.co":         true,
	"tempmailo.com":        true,
	"emltmp.com":           true,
	"nada.email":           true,
	"10mail.org":           true,
	"33mail.com":           true,
	"armyspy.com":          true,
	"cuvox.de":             true,
	"dayrep.com":           true,
	"fleckens.hu":          true,
	"gustr.com":            true,
	"rhyta.com":            true,
	"superrito.com":        true,
	"teleworm.us":          true,
}

// IsDisposable reports whether domain (any case) is a known throwaway
// address provider.
func IsDisposable(domain string) bool {
	return disposableDomains[strings.ToLower(domain)]
}
