package report

import (
	"strconv"
	"strings"
)

// Markdown renders the report for human reading. Section order is fixed;
// empty sections still appear so the reader can see nothing was found.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Trading Coach Report\n\n")

	b.WriteString("## Performance Overview\n\n")
	if r.PerformanceOverview.Summary != "" {
		b.WriteString(r.PerformanceOverview.Summary)
		b.WriteString("\n\n")
	}

	b.WriteString("### Key Metrics\n\n")
	writeBullets(&b, r.PerformanceOverview.KeyMetrics)

	b.WriteString("## Behavioural Patterns\n\n")
	writeBullets(&b, r.BehaviouralPatterns)

	b.WriteString("## Opportunities\n\n")
	writeBullets(&b, r.Opportunities)

	b.WriteString("## Action Plan\n\n")
	if len(r.ActionPlan) == 0 {
		b.WriteString("_None identified._\n")
		return b.String()
	}
	for i, item := range r.ActionPlan {
		b.WriteString("### ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(item.Title))
		b.WriteString("\n\n")
		if detail := strings.TrimSpace(item.Detail); detail != "" {
			b.WriteString(detail)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("_None identified._\n\n")
		return
	}
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
