package insight

import (
	"fmt"
	"strings"

	"github.com/leetrack/backend/internal/models"
)

func SystemPrompt() string {
	return strings.TrimSpace(`
You are a coding-interview coach. Given a practice problem, write one short
insight the learner should remember before their next attempt: the key
pattern or trick, the data structure it hinges on, and the mistake people
usually make. Two to four sentences of plain prose. No code, no markdown,
no preamble.`)
}

func BuildUserPrompt(p *models.Problem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Problem: %s\n", p.Name)
	if p.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", p.Link)
	}
	if len(p.Topics) > 0 {
		names := make([]string, len(p.Topics))
		for i, t := range p.Topics {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Times reviewed: %d\n", p.ReviewCount)
	if p.Insight != nil && *p.Insight != "" {
		fmt.Fprintf(&b, "Previous insight (improve on it): %s\n", *p.Insight)
	}
	b.WriteString("\nWrite the insight now.")
	return b.String()
}
