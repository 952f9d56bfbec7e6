package logger

import "strings"

// RedactEmail keeps the first two characters of the local part and the
// domain: "ana.perez@acme.co" logs as "an***@acme.co". Shorter local parts
// are masked entirely.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		local = ""
	} else {
		local = local[:2]
	}
	return local + "***@" + domain
}
