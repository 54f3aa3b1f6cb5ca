package utils

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

const quoteWidth = 55

// QuoteFunc turns a parent message into the prefilled body of a reply.
type QuoteFunc func(sender, body string) string

// FormatQuote reflows body into one paragraph wrapped at 55 columns and
// prefixes every line with "> ".
func FormatQuote(sender, body string) string {
	text := strings.Join(strings.Fields(body), " ")
	lines := strings.Split(wordwrap.WrapString(text, quoteWidth), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return fmt.Sprintf("%s wrote:\n%s", sender, strings.Join(lines, "\n"))
}

// FormatLinebreaksQuote keeps the original line breaks and only wraps lines
// that are longer than the quote width.
func FormatLinebreaksQuote(sender, body string) string {
	var out []string
	for _, paragraph := range strings.Split(body, "\n") {
		for _, line := range strings.Split(wordwrap.WrapString(paragraph, quoteWidth), "\n") {
			out = append(out, "> "+line)
		}
	}
	return fmt.Sprintf("%s wrote:\n%s", sender, strings.Join(out, "\n"))
}

// QuoteStyle picks a formatter by name: "default" (or empty) rewraps the whole
// body, "linebreaks" keeps the author's line breaks.
func QuoteStyle(style string) (QuoteFunc, error) {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "", "default":
		return FormatQuote, nil
	case "linebreaks":
		return FormatLinebreaksQuote, nil
	}
	return nil, fmt.Errorf("unknown quote style %q", style)
}

// ReplySubject prefixes subject with "Re: " unless it already carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re: ") {
		return subject
	}
	return "Re: " + subject
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
