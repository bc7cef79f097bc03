package orchestrator

import (
	"fmt"
	"strings"

	"github.com/memohai/accelerator/internal/contracts"
)

const maxSummaryUtterance = 120

// Summarize builds an extractive summary: the message count, the user
// questions in order and the last assistant answer.
func Summarize(messages []contracts.Message) string {
	if len(messages) == 0 {
		return "Empty conversation."
	}
	var asked []string
	var lastAnswer string
	for _, m := range messages {
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		content = shorten(strings.TrimSpace(content))
		if content == "" {
			continue
		}
		switch contracts.Role(role) {
		case contracts.RoleUser:
			asked = append(asked, content)
		case contracts.RoleAssistant:
			lastAnswer = content
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d messages.", len(messages))
	if len(asked) > 0 {
		fmt.Fprintf(&b, " User asked: %s.", strings.Join(asked, "; "))
	}
	if lastAnswer != "" {
		fmt.Fprintf(&b, " Last answer: %s", lastAnswer)
	}
	return b.String()
}

func shorten(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSummaryUtterance {
		return s
	}
	return string(runes[:maxSummaryUtterance]) + "..."
}
