// Package redact masks personal details before transcript text reaches logs.
// Stored memories are never redacted.
//
// Input is speech-to-text output, so numbers arrive written ("555-123-4567"),
// spoken ("five five five, one two three...") or mixed, and addresses are
// read out ("jake at gmail dot com").
package redact

import (
	"regexp"
	"strings"
)

const (
	// Fewer digits than this in a run is a time, a year or an age.
	minPhoneDigits = 7
	minCardDigits  = 13
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// "jake dot miller at yahoo dot co dot uk", "mia at gmail.com".
	spokenEmailPattern = regexp.MustCompile(`(?i)\b[a-z0-9_\-]+(?:(?:\s+dot\s+|\.)[a-z0-9_\-]+)*\s+at\s+[a-z0-9\-]+(?:(?:\s+dot\s+|\.)[a-z0-9\-]+)*(?:\s+dot\s+|\.)(?:com|net|org|edu|gov|io|co|uk|us|ca|au)\b`)

	// "42 Maple Street", "1200 Old Mill Road". Street names must be
	// capitalized, which transcribers do, so "2 miles down the road" passes.
	addressPattern = regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?i:street|st|avenue|ave|road|rd|lane|ln|drive|dr|court|ct|boulevard|blvd|way|place|pl|terrace|circle)\b`)

	// numberToken matches words and digit groups, keeping "123-4567",
	// "555.123.4567" and "five-five-five" whole.
	numberToken = regexp.MustCompile(`[\p{L}\p{N}+()]+(?:[\-.][\p{L}\p{N}()]+)*`)
	// runGap is what may sit between two tokens of one number.
	runGap = regexp.MustCompile(`^[,.]?\s+$`)
)

// digitWords maps spoken digits to the number of digits they stand for.
// "double five" counts 1+1, "triple oh" counts 2+1.
var digitWords = map[string]int{
	"zero": 1, "oh": 1, "o": 1, "one": 1, "two": 1, "three": 1, "four": 1,
	"five": 1, "six": 1, "seven": 1, "eight": 1, "nine": 1,
	"double": 1, "triple": 2,
}

// PII masks email addresses, street addresses, card numbers and phone
// numbers, written or spoken.
func PII(input string) (redacted string, changed bool) {
	out := input
	for _, step := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[email]"},
		{spokenEmailPattern, "[email]"},
		{addressPattern, "[address]"},
	} {
		next := step.pattern.ReplaceAllString(out, step.marker)
		changed = changed || next != out
		out = next
	}

	next := maskNumbers(out)
	changed = changed || next != out
	return next, changed
}

// maskNumbers replaces runs of digit tokens long enough to identify someone.
// Runs of 13 or more digits read as card numbers unless dialled with "+".
func maskNumbers(text string) string {
	locs := numberToken.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	flush := func(start, end, digits int) {
		if digits < minPhoneDigits {
			return
		}
		marker := "[phone]"
		if digits >= minCardDigits && !strings.HasPrefix(text[start:end], "+") {
			marker = "[card]"
		}
		b.WriteString(text[last:start])
		b.WriteString(marker)
		last = end
	}

	runStart, runEnd, digits := -1, -1, 0
	for _, loc := range locs {
		n := tokenDigits(text[loc[0]:loc[1]])
		if n == 0 {
			if runStart >= 0 {
				flush(runStart, runEnd, digits)
				runStart = -1
			}
			continue
		}
		if runStart >= 0 && runGap.MatchString(text[runEnd:loc[0]]) {
			runEnd = loc[1]
			digits += n
			continue
		}
		if runStart >= 0 {
			flush(runStart, runEnd, digits)
		}
		runStart, runEnd, digits = loc[0], loc[1], n
	}
	if runStart >= 0 {
		flush(runStart, runEnd, digits)
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// tokenDigits reports how many digits token spells, or 0 when any part of
// it is not a number.
func tokenDigits(token string) int {
	total := 0
	for _, part := range strings.FieldsFunc(token, func(r rune) bool { return r == '-' || r == '.' }) {
		part = strings.ToLower(strings.Trim(part, "+()"))
		if part == "" {
			return 0
		}
		if n, ok := digitWords[part]; ok {
			total += n
			continue
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0
			}
		}
		total += len(part)
	}
	return total
}

// Preview returns a redacted single-line excerpt of at most limit runes.
func Preview(text string, limit int) string {
	out, _ := PII(strings.Join(strings.Fields(text), " "))
	r := []rune(out)
	if limit > 0 && len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return out
}
