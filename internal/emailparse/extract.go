package emailparse

import (
	"regexp"
	"strings"
	"unicode"
)

// Result holds the fields pulled out of a request notification.
type Result struct {
	RequesterName  *string
	RequesterEmail *string
	Institution    *string
	LabName        *string
	RequestTime    *string
	ExternalLink   *string
	RawBody        string
	Valid          bool
}

var (
	nameRe        = fieldPattern("name")
	institutionRe = fieldPattern("institution")
	labNameRe     = fieldPattern("lab_name")
	timeRe        = fieldPattern("time")
	emailRe       = regexp.MustCompile(`(?im)^[ \t]*email:[ \t]*(\S+@\S+)`)
	// the URL may sit on the line after a bare "link:" header
	linkRe    = regexp.MustCompile(`(?im)^[ \t]*link:[ \t]*\n?[ \t]*(https?://\S+)`)
	subjectRe = regexp.MustCompile(`(?i)^(.+?)\s+is\s+requesting\s+an?\s+account`)
)

func fieldPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*` + regexp.QuoteMeta(key) + `:[ \t]*(\S.*)$`)
}

// Extract parses the key-value block of a request notification. The body may
// be HTML or plain text. The result is valid when a requester name or email
// was found.
func Extract(subject, body string) Result {
	result := Result{RawBody: body}
	clean := Normalize(body)

	result.RequesterName = firstMatch(nameRe, clean)
	if email := firstMatch(emailRe, clean); email != nil {
		lowered := strings.ToLower(*email)
		result.RequesterEmail = &lowered
	}
	result.Institution = firstMatch(institutionRe, clean)
	result.LabName = firstMatch(labNameRe, clean)
	result.RequestTime = firstMatch(timeRe, clean)
	result.ExternalLink = firstMatch(linkRe, clean)

	if result.RequesterName == nil && subject != "" {
		result.RequesterName = firstMatch(subjectRe, strings.TrimSpace(subject))
	}

	result.Valid = result.RequesterEmail != nil || result.RequesterName != nil
	return result
}

func firstMatch(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return nil
	}
	return &value
}

// NameFromAddress derives a display name from the local part of an email
// address: "mary-jane_doe@x.com" becomes "Mary Jane Doe".
func NameFromAddress(addr string) string {
	if addr == "" {
		return "Unknown"
	}
	local := addr
	if idx := strings.Index(addr, "@"); idx >= 0 {
		local = addr[:idx]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, part := range parts {
		parts[i] = capitalize(part)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
