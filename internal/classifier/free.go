package classifier

import "strings"

// freeProviders is the known-free-email-provider set backing spec.md §4.6's
// freeEmail field. Adapted from the reference CLI's provider table, which in
// turn is the most complete such table in the retrieved pack.
var freeProviders = map[string]bool{
	// Google
	"gmail.com":      true,
	"googlemail.com": true,

	// Microsoft
	"outlook.com":   true,
	"hotmail.com":   true,
	"hotmail.co.uk": true,
	"hotmail.fr":    true,
	"hotmail.de":    true,
	"live.com":      true,
	"live.co.uk":    true,
	"msn.com":       true,

	// Yahoo
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"yahoo.fr":       true,
	"yahoo.de":       true,
	"yahoo.co.in":    true,
	"yahoo.com.au":   true,
	"yahoo.com.br":   true,
	"ymail.com":      true,
	"rocketmail.com": true,

	// AOL/Verizon
	"aol.com":     true,
	"aim.com":     true,
	"verizon.net": true,

	// Apple
	"icloud.com": true,
	"me.com":     true,
	"mac.com":    true,

	// Privacy-oriented
	"protonmail.com": true,
	"protonmail.ch":  true,
	"proton.me":      true,
	"pm.me":          true,
	"tutanota.com":   true,
	"tutanota.de":    true,
	"tutamail.com":   true,

	// Zoho / mail.com family
	"zoho.com":       true,
	"zohomail.com":   true,
	"mail.com":       true,
	"email.com":      true,
	"usa.com":        true,

	// GMX
	"gmx.com": true,
	"gmx.net": true,
	"gmx.de":  true,

	// Yandex / Mail.ru
	"yandex.com": true,
	"yandex.ru":  true,
	"mail.ru":    true,
	"inbox.ru":   true,
	"bk.ru":      true,
	"list.ru":    true,

	// China
	"qq.com":  true,
	"163.com": true,
	"126.com": true,
	"sina.com": true,
	"sohu.com": true,
	"foxmail.com": true,

	// FastMail
	"fastmail.com": true,
	"fastmail.fm":  true,

	// Regional
	"web.de":      true,
	"t-online.de": true,
	"libero.it":   true,
	"free.fr":     true,
	"orange.fr":   true,
	"laposte.net": true,
	"wp.pl":       true,
	"onet.pl":     true,
	"seznam.cz":   true,
	"naver.com":   true,
	"daum.net":    true,

	// US ISPs
	"comcast.net":    true,
	"att.net":        true,
	"sbcglobal.net":  true,
	"bellsouth.net":  true,
	"cox.net":        true,
	"charter.net":    true,
	"earthlink.net":  true,

	// UK/AU ISPs
	"btinternet.com": true,
	"sky.com":        true,
	"bigpond.com":    true,
}

// IsFree reports whether domain is a known free-email provider.
func IsFree(domain string) bool {
	return freeProviders[strings.ToLower(domain)]
}
