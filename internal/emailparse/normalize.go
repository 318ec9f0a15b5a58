// Package emailparse turns raw notification emails into structured account
// request fields.
package emailparse

import (
	"regexp"
	"strings"
)

var (
	commentRe    = regexp.MustCompile(`(?s)<!--.*?-->`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	breakRe      = regexp.MustCompile(`(?i)<br\s*/?>`)
	paraCloseRe  = regexp.MustCompile(`(?i)</p>`)
	paraOpenRe   = regexp.MustCompile(`(?i)<p[^>]*>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n+`)
)

// entities decodes in a single pass, so "&amp;lt;" yields a literal "&lt;".
var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// Normalize strips markup from an email body and returns clean text whose
// line structure follows the original paragraphs.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := commentRe.ReplaceAllString(raw, "")
	text = styleRe.ReplaceAllString(text, "")
	text = scriptRe.ReplaceAllString(text, "")

	text = breakRe.ReplaceAllString(text, "\n")
	text = paraCloseRe.ReplaceAllString(text, "\n")
	text = paraOpenRe.ReplaceAllString(text, "")
	text = tagRe.ReplaceAllString(text, "")

	text = entities.Replace(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
