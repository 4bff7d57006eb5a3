package summary

import (
	"fmt"
	"strings"
)

const promptRules = `Write a memory of this visit in 3 to 4 short lines at most.
- Describe what it meant, not what was said word for word.
- Do not quote anyone and do not reuse phrases from the transcript.
- Focus on the emotional tone, the main topics and any outcomes or plans.
- Keep it warm, personal and simple to read.
Reply with the memory text only.`

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are helping someone with memory loss remember a visit.\n\n")

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "A visitor"
	}
	fmt.Fprintf(&b, "Visitor: %s", name)
	if rel := strings.TrimSpace(req.Relationship); rel != "" {
		fmt.Fprintf(&b, " (%s)", rel)
	}
	b.WriteString("\n")
	if req.VisitCount > 0 {
		fmt.Fprintf(&b, "Previous visits: %d\n", req.VisitCount)
	}
	if req.LastVisit != "" {
		fmt.Fprintf(&b, "Last visit: %s\n", req.LastVisit)
	}
	if req.LastSummary != "" {
		fmt.Fprintf(&b, "Memory of the last visit: %s\n", req.LastSummary)
	}

	fmt.Fprintf(&b, "\nConversation transcript:\n%s\n\n%s", req.Transcript, promptRules)
	return b.String()
}

func buildGroupPrompt(req Request) string {
	return fmt.Sprintf(
		"You are helping someone with memory loss remember a visit.\n\n"+
			"This was a group conversation with %s. Describe what the group talked about together, "+
			"not who said what.\n\nConversation transcript:\n%s\n\n%s",
		joinNames(req.Participants), req.Transcript, promptRules)
}
