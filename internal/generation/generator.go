package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"echopress/internal/grounding"
	"echopress/internal/logging"
	"echopress/internal/services"
	"echopress/internal/services/llm"
	"echopress/internal/transcript"
)

const stageName = "generation"

// Defaults applied when Options leaves a field unset.
const (
	DefaultTopK              = 5
	DefaultBannedTermRetries = 1
	DefaultMaxSections       = 5
)

// TextGenerator is the text-generation capability used for all prose.
type TextGenerator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Reply, error)
}

// Reply caps per article part, in tokens.
const (
	outlineMaxTokens   = 800
	sectionMaxTokens   = 1200
	framingMaxTokens   = 600
	takeawaysMaxTokens = 400
)

// Descriptor names one outline section.
type Descriptor struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Outline is the article structure the sections are generated from.
type Outline struct {
	Title    string       `json:"title" yaml:"title"`
	Sections []Descriptor `json:"sections" yaml:"sections"`
}

// Citation links generated prose back to a transcript time range.
type Citation struct {
	Text       string  `json:"text"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence"`
	Section    string  `json:"section"`
	Relevance  float64 `json:"relevance"`
}

// Section is one generated article section.
type Section struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
}

// Article collects every generated part of a draft before assembly.
type Article struct {
	Title        string    `json:"title"`
	Outline      Outline   `json:"outline"`
	Introduction string    `json:"introduction"`
	Sections     []Section `json:"sections"`
	Conclusion   string    `json:"conclusion"`
	Takeaways    []string  `json:"key_takeaways"`
}

// Options tune retrieval and the banned-term retry budget.
type Options struct {
	TopK              int
	ConfidenceFloor   float64
	BannedTermRetries int
	MaxSections       int
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.BannedTermRetries < 0 {
		o.BannedTermRetries = DefaultBannedTermRetries
	}
	if o.MaxSections <= 0 {
		o.MaxSections = DefaultMaxSections
	}
	if o.ConfidenceFloor < 0 {
		o.ConfidenceFloor = 0
	}
	return o
}

// Generator produces grounded sections and the surrounding article parts.
type Generator struct {
	llm    TextGenerator
	opts   Options
	logger *slog.Logger
}

// NewGenerator constructs a generator. A zero BannedTermRetries means no retry;
// callers wanting the default should use DefaultOptions.
func NewGenerator(client TextGenerator, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		llm:    client,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "generator"),
	}
}

// DefaultOptions returns the stock retrieval settings.
func DefaultOptions() Options {
	return Options{
		TopK:              DefaultTopK,
		BannedTermRetries: DefaultBannedTermRetries,
		MaxSections:       DefaultMaxSections,
	}
}

// ArticleInput carries everything needed to write one article.
type ArticleInput struct {
	Title    string
	Segments []transcript.Segment
	Index    *grounding.Index
	Style    *Style
	// Outline, when it has sections, replaces the generated outline.
	Outline *Outline
}

// Progress reports completed generation units out of the planned total.
type Progress func(done, total int)

// Article runs outline, sections, introduction, conclusion and takeaways in
// order. Any failure aborts the article.
func (g *Generator) Article(ctx context.Context, in ArticleInput, progress Progress) (Article, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	index := in.Index
	if index == nil {
		index = grounding.Build(in.Segments)
	}

	var outline Outline
	if in.Outline != nil && len(in.Outline.Sections) > 0 {
		outline = normalizeOutline(*in.Outline, in.Title, g.opts.MaxSections)
		if found := in.Style.BannedTermsIn(outlineText(outline)); len(found) > 0 {
			return Article{}, services.Wrap(services.ErrPolicyViolation, stageName, "outline",
				fmt.Sprintf("supplied outline uses banned terms %q", strings.Join(found, ", ")), nil)
		}
	} else {
		generated, err := g.Outline(ctx, in.Title, in.Segments, in.Style)
		if err != nil {
			return Article{}, err
		}
		outline = generated
	}

	// outline + sections + introduction + conclusion + takeaways
	total := len(outline.Sections) + 4
	done := 1
	progress(done, total)

	article := Article{Title: outline.Title, Outline: outline}
	for _, descriptor := range outline.Sections {
		section, err := g.Section(ctx, index, descriptor, in.Style)
		if err != nil {
			return Article{}, err
		}
		article.Sections = append(article.Sections, section)
		done++
		progress(done, total)
	}

	intro, err := g.Introduction(ctx, outline.Title, outline, in.Segments, in.Style)
	if err != nil {
		return Article{}, err
	}
	article.Introduction = intro
	done++
	progress(done, total)

	conclusion, err := g.Conclusion(ctx, outline.Title, article.Sections, in.Style)
	if err != nil {
		return Article{}, err
	}
	article.Conclusion = conclusion
	done++
	progress(done, total)

	takeaways, err := g.Takeaways(ctx, in.Segments, in.Style)
	if err != nil {
		return Article{}, err
	}
	article.Takeaways = takeaways
	done++
	progress(done, total)
	return article, nil
}

// FallbackOutline is used when the model reply cannot be parsed.
func FallbackOutline(title string) Outline {
	return Outline{
		Title: "Key Insights from: " + strings.TrimSpace(title),
		Sections: []Descriptor{
			{Title: "Introduction", Description: "Overview of the episode"},
			{Title: "Main Discussion", Description: "Key points from the conversation"},
			{Title: "Key Takeaways", Description: "Important insights and lessons"},
		},
	}
}

// FallbackTakeaways is used when the takeaways reply cannot be parsed.
func FallbackTakeaways() []string {
	return []string{"Key insights from the episode", "Important lessons learned", "Actionable next steps"}
}

// Outline asks the model for an article structure. Unparseable replies fall
// back to FallbackOutline; provider errors are returned.
func (g *Generator) Outline(ctx context.Context, title string, segments []transcript.Segment, style *Style) (Outline, error) {
	if err := g.ready(); err != nil {
		return Outline{}, err
	}
	reply, err := g.llm.Generate(ctx, llm.Request{
		System:    outlineSystemPrompt,
		User:      outlinePrompt(title, segments, g.opts.MaxSections, style),
		JSON:      true,
		MaxTokens: outlineMaxTokens,
	})
	if err != nil {
		return Outline{}, services.Classify(stageName, "outline", err)
	}
	raw := reply.Text
	var parsed Outline
	if err := llm.DecodeJSON(raw, &parsed); err != nil || len(parsed.Sections) == 0 {
		logging.WarnWithContext(g.logger, "outline reply unusable; using fallback structure", "outline_fallback",
			logging.String(logging.FieldErrorHint, "check the model's JSON compliance"),
			logging.String(logging.FieldImpact, "article uses the generic three-section outline"),
			logging.String("reply_snippet", truncateUTF8(strings.TrimSpace(raw), 160)),
		)
		return FallbackOutline(title), nil
	}
	outline := normalizeOutline(parsed, title, g.opts.MaxSections)
	if len(style.BannedTermsIn(outlineText(outline))) > 0 {
		g.logger.Info("outline contained banned terms; using fallback structure",
			logging.String(logging.FieldEventType, "outline_fallback"))
		return FallbackOutline(title), nil
	}
	g.logger.Info("outline generated",
		logging.String(logging.FieldEventType, "outline_generated"),
		logging.String("title", outline.Title),
		logging.Int("sections", len(outline.Sections)),
	)
	return outline, nil
}

// Section retrieves grounding for d, writes its prose and attaches citations.
func (g *Generator) Section(ctx context.Context, index *grounding.Index, d Descriptor, style *Style) (Section, error) {
	if err := g.ready(); err != nil {
		return Section{}, err
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	op := "section " + d.Title
	if d.Title == "" {
		return Section{}, services.Wrap(services.ErrInput, stageName, "section", "section title is empty", nil)
	}
	if index.Len() == 0 {
		return Section{}, services.Wrap(services.ErrGroundingViolation, stageName, op, "no transcript segments to ground on", nil)
	}

	hits := index.Query(d.Title+" "+d.Description, g.opts.TopK)
	citations, dropped := g.citationsFor(index, d.Title, hits)

	material := make([]sourceSegment, 0, len(hits))
	for _, hit := range hits {
		material = append(material, sourceSegment{Segment: hit.Segment, lowTrust: hit.Segment.Confidence < g.opts.ConfidenceFloor})
	}
	degraded := len(hits) == 0
	if degraded {
		for _, seg := range firstN(index.Segments(), g.opts.TopK) {
			material = append(material, sourceSegment{Segment: seg, lowTrust: seg.Confidence < g.opts.ConfidenceFloor})
		}
		logging.WarnWithContext(g.logger, "no segments above relevance threshold; writing section from general context", "section_degraded",
			logging.String("section", d.Title),
			logging.String(logging.FieldErrorHint, "refine the outline description or lower relevance_threshold"),
			logging.String(logging.FieldImpact, "section has no citations"),
		)
	}

	content, err := g.generateClean(ctx, op, llm.Request{
		System:    writerSystemPrompt,
		User:      sectionPrompt(d, material, degraded, style),
		MaxTokens: sectionMaxTokens,
	}, style)
	if err != nil {
		return Section{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Section{}, services.Wrap(services.ErrGroundingViolation, stageName, op, "section has no usable content", nil)
	}

	g.logger.Info("section generated",
		logging.String(logging.FieldEventType, "section_generated"),
		logging.String("section", d.Title),
		logging.Int("retrieved", len(hits)),
		logging.Int("citations", len(citations)),
		logging.Int("dropped_citations", dropped),
	)
	return Section{Title: d.Title, Content: content, Citations: citations}, nil
}

// Introduction writes the article opening. No citations are attached.
func (g *Generator) Introduction(ctx context.Context, title string, outline Outline, segments []transcript.Segment, style *Style) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	return g.generateClean(ctx, "introduction", llm.Request{
		System:    writerSystemPrompt,
		User:      introductionPrompt(title, outline, segments, style),
		MaxTokens: framingMaxTokens,
	}, style)
}

// Conclusion writes the article closing from the generated sections.
func (g *Generator) Conclusion(ctx context.Context, title string, sections []Section, style *Style) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	return g.generateClean(ctx, "conclusion", llm.Request{
		System:    writerSystemPrompt,
		User:      conclusionPrompt(title, sections, style),
		MaxTokens: framingMaxTokens,
	}, style)
}

// Takeaways extracts 3-5 short takeaways. Unparseable replies fall back to
// FallbackTakeaways; banned terms follow the usual retry budget.
func (g *Generator) Takeaways(ctx context.Context, segments []transcript.Segment, style *Style) ([]string, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	req := llm.Request{
		System:    takeawaysSystemPrompt,
		User:      takeawaysPrompt(segments, style),
		JSON:      true,
		MaxTokens: takeawaysMaxTokens,
	}
	attempts := g.opts.BannedTermRetries + 1
	var found []string
	for attempt := 1; attempt <= attempts; attempt++ {
		req.Avoid = found
		reply, err := g.llm.Generate(ctx, req)
		if err != nil {
			return nil, services.Classify(stageName, "takeaways", err)
		}
		var items []string
		if err := llm.DecodeJSON(reply.Text, &items); err != nil {
			logging.WarnWithContext(g.logger, "takeaways reply unusable; using fallback list", "takeaways_fallback",
				logging.String(logging.FieldErrorHint, "check the model's JSON compliance"),
				logging.String(logging.FieldImpact, "draft carries generic takeaways"),
			)
			return FallbackTakeaways(), nil
		}
		items = cleanList(items, 5)
		if len(items) == 0 {
			return FallbackTakeaways(), nil
		}
		found = style.BannedTermsIn(strings.Join(items, "\n"))
		if len(found) == 0 {
			return items, nil
		}
		g.logBanned("takeaways", attempt, attempts, found)
	}
	return nil, policyError("takeaways", found, attempts)
}

// generateClean requests prose and regenerates while banned terms appear,
// naming the offending terms in each retry.
func (g *Generator) generateClean(ctx context.Context, op string, req llm.Request, style *Style) (string, error) {
	attempts := g.opts.BannedTermRetries + 1
	var found []string
	for attempt := 1; attempt <= attempts; attempt++ {
		req.Avoid = found
		reply, err := g.llm.Generate(ctx, req)
		if err != nil {
			return "", services.Classify(stageName, op, err)
		}
		if reply.Truncated() {
			logging.WarnWithContext(g.logger, "reply stopped at token limit", "reply_truncated",
				logging.String("operation", op),
				logging.Int("max_tokens", req.MaxTokens),
				logging.String(logging.FieldErrorHint, "shorten the outline description or raise the part's token cap"),
				logging.String(logging.FieldImpact, "passage may end mid-sentence"),
			)
		}
		text := strings.TrimSpace(reply.Text)
		found = style.BannedTermsIn(text)
		if len(found) == 0 {
			return text, nil
		}
		g.logBanned(op, attempt, attempts, found)
	}
	return "", policyError(op, found, attempts)
}

func (g *Generator) logBanned(op string, attempt, attempts int, found []string) {
	logging.WarnWithContext(g.logger, "generated text contains banned terms", "banned_terms_detected",
		logging.String("operation", op),
		logging.Int("attempt", attempt),
		logging.Int("max_attempts", attempts),
		logging.String("terms", strings.Join(found, ", ")),
		logging.String(logging.FieldErrorHint, "review banned_terms in the voice profile"),
		logging.String(logging.FieldImpact, "passage regenerated"),
	)
}

func policyError(op string, found []string, attempts int) error {
	msg := fmt.Sprintf("banned terms %q still present after %d attempts", strings.Join(found, ", "), attempts)
	return services.Wrap(services.ErrPolicyViolation, stageName, op, msg, nil)
}

// citationsFor converts hits into citations, dropping those under the
// confidence floor or outside the indexed timeline.
func (g *Generator) citationsFor(index *grounding.Index, section string, hits []grounding.Hit) ([]Citation, int) {
	citations := make([]Citation, 0, len(hits))
	dropped := 0
	for _, hit := range hits {
		seg := hit.Segment
		if seg.Confidence < g.opts.ConfidenceFloor {
			dropped++
			g.logger.Debug("citation below confidence floor dropped",
				logging.String("section", section),
				logging.Int64("start_ms", seg.StartMS),
				logging.Float64("confidence", seg.Confidence),
			)
			continue
		}
		if !index.Contains(seg.StartMS, seg.EndMS) {
			dropped++
			logging.WarnWithContext(g.logger, "citation outside transcript timeline dropped", "grounding_violation",
				logging.String("section", section),
				logging.Int64("start_ms", seg.StartMS),
				logging.Int64("end_ms", seg.EndMS),
				logging.String(logging.FieldErrorHint, "inspect transcript segments"),
				logging.String(logging.FieldImpact, "citation omitted from ledger"),
			)
			continue
		}
		citations = append(citations, Citation{
			Text:       strings.TrimSpace(seg.Text),
			StartMS:    seg.StartMS,
			EndMS:      seg.EndMS,
			Speaker:    seg.Speaker,
			Confidence: seg.Confidence,
			Section:    section,
			Relevance:  hit.Score,
		})
	}
	return citations, dropped
}

func (g *Generator) ready() error {
	if g == nil || g.llm == nil {
		return services.Wrap(services.ErrConfiguration, stageName, "init", "text generator not configured", nil)
	}
	return nil
}

// sourceSegment is a transcript segment presented to the model.
type sourceSegment struct {
	transcript.Segment
	lowTrust bool
}

func (s sourceSegment) line() string {
	label := speakerLabel(s.Speaker)
	if s.lowTrust {
		label += " (low confidence)"
	}
	return fmt.Sprintf("[%s-%s] %s: %s", clock(s.StartMS), clock(s.EndMS), label, strings.TrimSpace(s.Text))
}

func clock(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func normalizeOutline(outline Outline, fallbackTitle string, maxSections int) Outline {
	out := Outline{Title: strings.TrimSpace(outline.Title)}
	if out.Title == "" {
		out.Title = FallbackOutline(fallbackTitle).Title
	}
	seen := make(map[string]struct{}, len(outline.Sections))
	for _, section := range outline.Sections {
		title := strings.TrimSpace(section.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Sections = append(out.Sections, Descriptor{Title: title, Description: strings.TrimSpace(section.Description)})
		if maxSections > 0 && len(out.Sections) == maxSections {
			break
		}
	}
	if len(out.Sections) == 0 {
		out.Sections = FallbackOutline(fallbackTitle).Sections
	}
	return out
}

func outlineText(outline Outline) string {
	parts := []string{outline.Title}
	for _, section := range outline.Sections {
		parts = append(parts, section.Title, section.Description)
	}
	return strings.Join(parts, "\n")
}

func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func firstN(segments []transcript.Segment, n int) []transcript.Segment {
	if len(segments) <= n {
		return segments
	}
	return segments[:n]
}
