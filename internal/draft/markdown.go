package draft

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the draft as a publishable markdown article with a
// reference list under each cited section.
func RenderMarkdown(d Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	if d.Introduction != "" {
		b.WriteString(d.Introduction)
		b.WriteString("\n\n")
	}
	for _, section := range d.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Title)
		if section.Content != "" {
			b.WriteString(section.Content)
			b.WriteString("\n\n")
		}
		if len(section.Citations) == 0 {
			continue
		}
		b.WriteString("**References:**\n")
		for _, c := range section.Citations {
			speaker := c.Speaker
			if speaker == "" {
				speaker = "Unknown speaker"
			}
			fmt.Fprintf(&b, "- %s (%s-%s)\n", speaker, seconds(c.StartMS), seconds(c.EndMS))
		}
		b.WriteString("\n")
	}
	if d.Conclusion != "" {
		b.WriteString("## Conclusion\n\n")
		b.WriteString(d.Conclusion)
		b.WriteString("\n\n")
	}
	if len(d.KeyTakeaways) > 0 {
		b.WriteString("## Key Takeaways\n\n")
		for _, item := range d.KeyTakeaways {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func seconds(ms int64) string {
	if ms%1000 == 0 {
		return fmt.Sprintf("%ds", ms/1000)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
