package summary

import (
	"strings"
	"unicode"
)

const (
	// GenericSummary stands in when there is nothing to summarize.
	GenericSummary = "Had a conversation together."

	maxSummaryLines = 4
)

type cueRule struct {
	words   []string
	phrases []string
	line    string
}

// Rules are checked in order; the first cue found decides the line.
var cueRules = []cueRule{
	{
		words: []string{"worried", "worry", "worries", "worrying", "concerned", "concern", "anxious", "nervous", "scared", "afraid", "stressed", "upset"},
		line:  "Shared some worries that have been on their mind.",
	},
	{
		words: []string{"doctor", "doctors", "hospital", "appointment", "medicine", "medication", "surgery", "nurse", "clinic"},
		line:  "Talked about health and care appointments.",
	},
	{
		words: []string{"happy", "excited", "glad", "love", "loved", "wonderful", "great", "fun", "laughed", "laughing", "proud", "enjoyed"},
		line:  "Enjoyed a warm, happy moment together.",
	},
	{
		words:   []string{"plan", "plans", "planning", "will", "tomorrow", "weekend", "soon"},
		phrases: []string{"going to", "next week", "next month"},
		line:    "Talked about plans for the days ahead.",
	},
	{
		words: []string{"grandchildren", "grandkids", "grandson", "granddaughter", "kids", "children", "son", "daughter", "family", "wedding", "baby"},
		line:  "Caught up on family news.",
	},
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are as at be because been
		before being below between both but by can could did do does doing down during each few for from further
		had has have having he her here hers herself him himself his how i if in into is it its itself just
		let like me more most my myself no nor not now of off on once only or other our ours ourselves out over
		own really same she should so some such than that the their theirs them themselves then there these they
		this those through to too under until up very was we well were what when where which while who whom why
		with would yeah yes you your yours yourself yourselves oh okay ok um uh hi hello hey also got get go
		going know think said say says thing things lot much one two`) {
		stopwords[w] = struct{}{}
	}
}

// Fallback abstracts transcript without a model. It keeps at most three
// sentences (first, middle, last), maps each to a fixed phrase by lexical
// cue, and never copies more than a few content words.
func Fallback(transcript string) string {
	sentences := splitSentences(transcript)
	if len(sentences) == 0 {
		return GenericSummary
	}

	var picked []string
	switch n := len(sentences); {
	case n <= 2:
		picked = sentences
	case n == 3:
		picked = []string{sentences[0], sentences[2]}
	default:
		picked = []string{sentences[0], sentences[n/2], sentences[n-1]}
	}

	lines := make([]string, 0, len(picked))
	for _, s := range picked {
		lines = append(lines, abstractSentence(s))
	}
	return joinLines(lines)
}

// GroupFallback is Fallback for a recording shared by several people.
func GroupFallback(transcript string, names []string) string {
	lead := GenericSummary
	if len(names) > 0 {
		lead = "Had a conversation with " + joinNames(names) + "."
	}
	if strings.TrimSpace(transcript) == "" {
		return lead
	}
	body := Fallback(transcript)
	if body == GenericSummary {
		return lead
	}
	return joinLines(append([]string{lead}, strings.Split(body, "\n")...))
}

func abstractSentence(sentence string) string {
	ws := words(sentence)
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	joined := " " + strings.Join(ws, " ") + " "
	for _, rule := range cueRules {
		for _, w := range rule.words {
			if _, ok := set[w]; ok {
				return rule.line
			}
		}
		for _, p := range rule.phrases {
			if strings.Contains(joined, " "+p+" ") {
				return rule.line
			}
		}
	}

	topics := contentWords(ws, 3)
	if len(topics) == 0 {
		return GenericSummary
	}
	return "Talked about " + joinNames(topics) + "."
}

func contentWords(ws []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range ws {
		if len(out) == limit {
			break
		}
		if len([]rune(w)) < 3 || strings.ContainsRune(w, '\'') || isNumber(w) {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// splitSentences breaks on ., ! and ? runs. Text without terminators is a
// single sentence.
func splitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" && len(words(s)) > 0 {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return out
}

// joinLines drops blank and repeated lines and keeps at most four.
func joinLines(lines []string) string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) == maxSummaryLines {
			break
		}
	}
	return strings.Join(out, "\n")
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
