package source

import (
	"regexp"
	"strings"
)

var (
	// a signature delimiter line swallows everything after it
	signatureRe   = regexp.MustCompile(`(?s)(--|__|––|—)\s*\n.*`)
	replyHeaderRe = regexp.MustCompile(`On\s.*(wrote|écrit):`)
	forwardedRe   = regexp.MustCompile(`(?i)---------- Forwarded message ---------`)
	headerLineRe  = regexp.MustCompile(`(From|To|Cc|Subject|Date):.*`)
)

// CleanEmailBody strips signatures, quoted-reply headers and forwarded
// message boilerplate from an email body, then drops blank lines. Run ahead
// of chunking so the artifacts never reach the prompts or the index.
func CleanEmailBody(text string) string {
	text = signatureRe.ReplaceAllString(text, "")
	text = replyHeaderRe.ReplaceAllString(text, "")
	text = forwardedRe.ReplaceAllString(text, "")
	text = headerLineRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
