package redact

import (
	"strings"
	"testing"
)

func TestPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := PII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[email]", "[phone]", "[card]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "sam@example.com") || strings.Contains(out, "4242") {
		t.Fatalf("output still holds personal data: %q", out)
	}

	if _, changed := PII("We baked bread on Sunday."); changed {
		t.Fatalf("plain text reported as changed")
	}
}

func TestPIISpokenTranscripts(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{
			"My new number is five five five, one two three, four five six seven.",
			"My new number is [phone].",
		},
		{
			"Call me on oh seven seven double oh nine one one two two three tonight",
			"Call me on [phone] tonight",
		},
		{
			"it's 555 one two three 4567 now",
			"it's [phone] now",
		},
		{
			"Write to jake dot miller at gmail dot com please.",
			"Write to [email] please.",
		},
		{
			"send it to mia at yahoo.co.uk",
			"send it to [email]",
		},
		{
			"We moved to 42 Maple Street last spring.",
			"We moved to [address] last spring.",
		},
		{
			"The card is four two four two four two four two four two four two four two four two.",
			"The card is [card].",
		},
	}
	for _, tc := range cases {
		got, changed := PII(tc.in)
		if got != tc.want || !changed {
			t.Fatalf("PII(%q) = %q, %v; want %q, true", tc.in, got, changed, tc.want)
		}
	}
}

func TestPIIKeepsEverydayNumbers(t *testing.T) {
	for _, in := range []string{
		"I was born in 1950 and married in 1972.",
		"We walked 2 miles down the road.",
		"One of these days, two or three of us will visit.",
		"They sold the farm for 1,200,000 back then.",
		"Meet at the cafe at 3:30.",
	} {
		if got, changed := PII(in); changed {
			t.Fatalf("PII(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("  we went\n\nto the   park  ", 0); got != "we went to the park" {
		t.Fatalf("Preview collapsed = %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd..." {
		t.Fatalf("Preview truncated = %q", got)
	}
	if got := Preview("call 555-123-4567 tomorrow", 100); got != "call [phone] tomorrow" {
		t.Fatalf("Preview redacted = %q", got)
	}
	if got := Preview("ring\nfive five five\none two three four", 100); got != "ring [phone]" {
		t.Fatalf("Preview spoken = %q", got)
	}
}
