// Package translator converts Telegram rich-text annotations and forward
// metadata into Discord-flavoured markdown.
package translator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// sourceLinkBase is the public URL prefix for source-platform handles and
// numeric ids referenced by mentions and channel attributions.
const sourceLinkBase = "https://t.me/"

// linkPattern matches user-typed text that would render as a markdown
// hyperlink on the destination side.
var linkPattern = regexp.MustCompile(`\[([^\[\]]*)\]\(([^()]*)\)`)

// Translator rebuilds message text with destination markup applied.
type Translator struct {
	logger zerolog.Logger
}

// New creates a translator
func New(logger zerolog.Logger) *Translator {
	return &Translator{
		logger: logger.With().Str("component", "translator").Logger(),
	}
}

// Translate applies the annotations to text and returns the destination
// rendering. Annotation offsets are UTF-16 code units, so the text is
// encoded once and every span is cut in UTF-16 space; rebuilding
// positionally (rather than substring replacement) keeps repeated literals
// from being rewritten more than once.
func (t *Translator) Translate(text string, anns []domain.Annotation) string {
	if text == "" {
		return ""
	}
	if len(anns) == 0 {
		return escapeLinks(text)
	}

	units := utf16.Encode([]rune(text))

	sorted := make([]domain.Annotation, len(anns))
	copy(sorted, anns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	var b strings.Builder
	pos := 0

	for _, ann := range sorted {
		start := ann.Offset
		end := ann.Offset + ann.Length

		if start < pos {
			// Overlaps a span already emitted; Telegram can nest entities
			// but the destination markup cannot, so the outermost wins.
			t.logger.Warn().
				Str("type", ann.Type.String()).
				Int("offset", ann.Offset).
				Int("length", ann.Length).
				Msg("skipping overlapping annotation")
			continue
		}
		if start > len(units) {
			t.logger.Warn().
				Str("type", ann.Type.String()).
				Int("offset", ann.Offset).
				Int("text_units", len(units)).
				Msg("skipping annotation beyond end of text")
			continue
		}
		if end > len(units) {
			end = len(units)
		}

		b.WriteString(escapeLinks(decodeUnits(units[pos:start])))
		b.WriteString(t.render(ann, decodeUnits(units[start:end])))
		pos = end
	}

	b.WriteString(escapeLinks(decodeUnits(units[pos:])))
	return b.String()
}

// render produces the destination markup for one annotated span
func (t *Translator) render(ann domain.Annotation, span string) string {
	switch ann.Type {
	case domain.AnnotationBold:
		return "**" + span + "**"
	case domain.AnnotationItalic:
		return "*" + span + "*"
	case domain.AnnotationCode:
		return "`" + span + "`"
	case domain.AnnotationStrikethrough:
		return "~~" + span + "~~"
	case domain.AnnotationUnderline:
		return "__" + span + "__"
	case domain.AnnotationPre:
		return "```" + ann.Language + "\n" + span + "```"
	case domain.AnnotationURL:
		if !strings.Contains(span, "://") {
			return "https://" + span
		}
		return span
	case domain.AnnotationTextLink:
		return "[" + span + "](" + ann.URL + ")"
	case domain.AnnotationMention:
		handle := strings.TrimPrefix(span, "@")
		return "[" + span + "](" + sourceLinkBase + handle + ")"
	case domain.AnnotationMentionName:
		return fmt.Sprintf("[%s](%s%d)", span, sourceLinkBase, ann.UserID)
	default:
		t.logger.Warn().
			Str("type", ann.Type.String()).
			Int("offset", ann.Offset).
			Msg("unknown annotation type, passing text through")
		return span
	}
}

// decodeUnits converts a UTF-16 slice back to a Go string
func decodeUnits(units []uint16) string {
	if len(units) == 0 {
		return ""
	}
	return string(utf16.Decode(units))
}

// escapeLinks neutralizes user-typed [text](url) sequences so they are not
// interpreted as destination hyperlinks
func escapeLinks(s string) string {
	if s == "" {
		return s
	}
	return linkPattern.ReplaceAllString(s, `\[$1\]($2)`)
}

// Compose assembles the final outbound message from its sections; sections
// that are absent are omitted entirely instead of leaving blank lines.
func Compose(attribution, body string, mediaURLs []string) string {
	sections := make([]string, 0, 3)
	if attribution != "" {
		sections = append(sections, attribution)
	}
	if body != "" {
		sections = append(sections, body)
	}
	if len(mediaURLs) > 0 {
		sections = append(sections, strings.Join(mediaURLs, "\n"))
	}
	return strings.Join(sections, "\n\n")
}
