package summary

import (
	"strings"
	"unicode"
)

// RejectReason names why a candidate summary was judged a copy of the
// transcript rather than an abstraction of it.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectTruncated     RejectReason = "truncated"
	RejectSubstring     RejectReason = "substring"
	RejectCopiedPhrase  RejectReason = "copied_phrase"
	RejectVerbatimRatio RejectReason = "verbatim_ratio"
)

const (
	minJudgedWords    = 3
	minSubstringChars = 20
	maxCopiedRun      = 5
	maxVerbatimRatio  = 0.65
)

// Verdict is the outcome of Validate.
type Verdict struct {
	OK     bool
	Reason RejectReason
	Run    int
	Ratio  float64
}

// Validate decides whether candidate abstracts transcript. Checks run in a
// fixed order: truncation markers, whole-summary substring, then word-level
// copy detection for summaries of three or more words.
func Validate(candidate, transcript string) Verdict {
	if strings.Contains(candidate, "...") || strings.Contains(candidate, "…") {
		return Verdict{Reason: RejectTruncated}
	}

	lowSummary := strings.ToLower(strings.TrimSpace(candidate))
	if len(lowSummary) > minSubstringChars && strings.Contains(strings.ToLower(transcript), lowSummary) {
		return Verdict{Reason: RejectSubstring}
	}

	sw := words(candidate)
	if len(sw) < minJudgedWords {
		return Verdict{OK: true}
	}

	run, matched := matchWords(sw, words(transcript))
	ratio := float64(matched) / float64(len(sw))
	switch {
	case run >= maxCopiedRun:
		return Verdict{Reason: RejectCopiedPhrase, Run: run, Ratio: ratio}
	case ratio > maxVerbatimRatio:
		return Verdict{Reason: RejectVerbatimRatio, Run: run, Ratio: ratio}
	}
	return Verdict{OK: true, Run: run, Ratio: ratio}
}

// matchWords walks the summary left to right, matching each word against the
// transcript from a moving cursor. A word that directly follows the previous
// match extends the current run. When no occurrence remains after the cursor
// the search restarts from the top of the transcript. It returns the longest
// run and the number of matched words.
func matchWords(summary, transcript []string) (longest, matched int) {
	positions := make(map[string][]int, len(transcript))
	for i, w := range transcript {
		positions[w] = append(positions[w], i)
	}

	cursor, last, run := 0, -1, 0
	for _, w := range summary {
		idx := -1
		if last >= 0 && last+1 < len(transcript) && transcript[last+1] == w {
			idx = last + 1
		} else if ps := positions[w]; len(ps) > 0 {
			idx = ps[0]
			for _, p := range ps {
				if p >= cursor {
					idx = p
					break
				}
			}
		}
		if idx < 0 {
			run, last = 0, -1
			continue
		}
		matched++
		if last >= 0 && idx == last+1 {
			run++
		} else {
			run = 1
		}
		last, cursor = idx, idx+1
		longest = max(longest, run)
	}
	return longest, matched
}

// words lower-cases text and splits it on anything that is not a letter,
// digit or apostrophe.
func words(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "'"); f != "" {
			out = append(out, f)
		}
	}
	return out
}
