package generation

import (
	"fmt"
	"strings"

	"echopress/internal/transcript"
)

// writerSystemPrompt frames every prose request.
const writerSystemPrompt = `You are an editor turning recorded conversations into written articles.
Only state what the supplied transcript material supports. Do not invent quotes, names, numbers or dates.
Return plain prose without headings, bullet lists or markdown formatting.`

// outlineSystemPrompt frames the outline request, which must return JSON.
const outlineSystemPrompt = `You plan article structures for recorded conversations.
Respond with JSON only, shaped exactly as:
{"title": "Compelling Article Title", "sections": [{"title": "Section Title", "description": "What this section covers"}]}`

// takeawaysSystemPrompt frames the takeaways request, which must return a JSON array.
const takeawaysSystemPrompt = `You extract key takeaways from recorded conversations.
Respond with a JSON array of strings only, for example ["Takeaway 1", "Takeaway 2", "Takeaway 3"].`

// takeawaysExcerptLimit bounds the transcript excerpt sent for takeaways, in bytes.
const takeawaysExcerptLimit = 2000

func outlinePrompt(title string, segments []transcript.Segment, maxSections int, style *Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an article structure for a recording titled %q.\n\n", title)
	fmt.Fprintf(&b, "Transcript length: %d words\n", wordCount(segments))
	if speakers := transcript.Speakers(segments); len(speakers) > 0 {
		fmt.Fprintf(&b, "Speakers: %s\n", strings.Join(speakers, ", "))
	}
	writeVoice(&b, style)
	fmt.Fprintf(&b, "\nGenerate a compelling title and 3-%d main sections with descriptive titles.\n", maxSections)
	b.WriteString("\nTranscript excerpt:\n")
	b.WriteString(excerpt(segments, takeawaysExcerptLimit))
	return b.String()
}

func sectionPrompt(d Descriptor, material []sourceSegment, degraded bool, style *Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an article section titled %q.\n\n", d.Title)
	if desc := strings.TrimSpace(d.Description); desc != "" {
		fmt.Fprintf(&b, "Section description: %s\n\n", desc)
	}
	if degraded {
		b.WriteString("No transcript passage matched this topic closely. Keep the section brief and general, using only the context below.\n\n")
	}
	b.WriteString("Relevant transcript segments:\n")
	for _, src := range material {
		b.WriteString(src.line())
		b.WriteString("\n\n")
	}
	writeVoice(&b, style)
	b.WriteString(`
Write engaging, informative content that:
1. Is grounded in the provided transcript segments
2. Maintains the specified voice
3. Is well-structured and readable
4. Includes specific examples and insights
Treat segments marked low confidence as uncertain and avoid quoting them directly.
Aim for two to four paragraphs.`)
	writeBanned(&b, style)
	return b.String()
}

func introductionPrompt(title string, outline Outline, segments []transcript.Segment, style *Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an engaging introduction for an article about the recording %q.\n\n", title)
	fmt.Fprintf(&b, "Transcript length: %d words\n", wordCount(segments))
	if len(outline.Sections) > 0 {
		b.WriteString("The article covers:\n")
		for _, section := range outline.Sections {
			fmt.Fprintf(&b, "- %s\n", section.Title)
		}
	}
	writeVoice(&b, style)
	b.WriteString(`
The introduction should:
1. Hook the reader
2. Provide context about the recording
3. Set expectations for what the reader will learn
4. Be 2-3 paragraphs long

Opening of the transcript:
`)
	b.WriteString(excerpt(segments, 1200))
	writeBanned(&b, style)
	return b.String()
}

func conclusionPrompt(title string, sections []Section, style *Style) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a conclusion for an article about the recording %q.\n\n", title)
	if len(sections) > 0 {
		b.WriteString("Sections already written:\n")
		for _, section := range sections {
			fmt.Fprintf(&b, "- %s: %s\n", section.Title, firstSentence(section.Content))
		}
	}
	writeVoice(&b, style)
	b.WriteString(`
The conclusion should:
1. Summarize key insights
2. Provide actionable takeaways
3. End with a compelling call-to-action
4. Be 1-2 paragraphs long`)
	writeBanned(&b, style)
	return b.String()
}

func takeawaysPrompt(segments []transcript.Segment, style *Style) string {
	var b strings.Builder
	b.WriteString("Extract 3-5 key takeaways from this transcript:\n\n")
	b.WriteString(excerpt(segments, takeawaysExcerptLimit))
	b.WriteString("\n")
	writeVoice(&b, style)
	writeBanned(&b, style)
	return b.String()
}

func writeVoice(b *strings.Builder, style *Style) {
	if line := style.voiceLine(); line != "" {
		fmt.Fprintf(b, "\nVoice: %s\n", line)
	}
}

func writeBanned(b *strings.Builder, style *Style) {
	if terms := style.bannedTerms(); len(terms) > 0 {
		fmt.Fprintf(b, "\n\nNever use these terms: %s.", strings.Join(terms, ", "))
	}
}

// excerpt joins speaker-labelled segment text until limit bytes are reached.
func excerpt(segments []transcript.Segment, limit int) string {
	var b strings.Builder
	for _, seg := range segments {
		line := speakerLabel(seg.Speaker) + ": " + strings.TrimSpace(seg.Text) + "\n"
		if b.Len()+len(line) > limit {
			if b.Len() == 0 {
				b.WriteString(truncateUTF8(line, limit))
			}
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func wordCount(segments []transcript.Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(strings.Fields(seg.Text))
	}
	return total
}

func speakerLabel(speaker string) string {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return "Speaker Unknown"
	}
	return "Speaker " + speaker
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		return text[:idx+1]
	}
	return truncateUTF8(text, 200)
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !isRuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
