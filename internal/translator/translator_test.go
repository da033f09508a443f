package translator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

func newTestTranslator() *Translator {
	return New(zerolog.Nop())
}

func TestTranslate_Annotations(t *testing.T) {
	tests := []struct {
		name string
		text string
		anns []domain.Annotation
		want string
	}{
		{
			name: "no annotations passes text through",
			text: "plain text",
			anns: nil,
			want: "plain text",
		},
		{
			name: "bold",
			text: "breaking news",
			anns: []domain.Annotation{{Type: domain.AnnotationBold, Offset: 0, Length: 8}},
			want: "**breaking** news",
		},
		{
			name: "italic",
			text: "breaking news",
			anns: []domain.Annotation{{Type: domain.AnnotationItalic, Offset: 9, Length: 4}},
			want: "breaking *news*",
		},
		{
			name: "inline code",
			text: "run go build now",
			anns: []domain.Annotation{{Type: domain.AnnotationCode, Offset: 4, Length: 8}},
			want: "run `go build` now",
		},
		{
			name: "strikethrough",
			text: "old price",
			anns: []domain.Annotation{{Type: domain.AnnotationStrikethrough, Offset: 0, Length: 3}},
			want: "~~old~~ price",
		},
		{
			name: "underline",
			text: "read this",
			anns: []domain.Annotation{{Type: domain.AnnotationUnderline, Offset: 5, Length: 4}},
			want: "read __this__",
		},
		{
			name: "code block with language",
			text: "fmt.Println(1)",
			anns: []domain.Annotation{{Type: domain.AnnotationPre, Offset: 0, Length: 14, Language: "go"}},
			want: "```go\nfmt.Println(1)```",
		},
		{
			name: "styled hyperlink",
			text: "call me",
			anns: []domain.Annotation{{Type: domain.AnnotationTextLink, Offset: 5, Length: 2, URL: "https://x"}},
			want: "call [me](https://x)",
		},
		{
			name: "bare url without scheme gets https prefix",
			text: "see example.com/page",
			anns: []domain.Annotation{{Type: domain.AnnotationURL, Offset: 4, Length: 16}},
			want: "see https://example.com/page",
		},
		{
			name: "bare url with scheme is untouched",
			text: "see http://example.com",
			anns: []domain.Annotation{{Type: domain.AnnotationURL, Offset: 4, Length: 18}},
			want: "see http://example.com",
		},
		{
			name: "mention with handle",
			text: "ping @someone now",
			anns: []domain.Annotation{{Type: domain.AnnotationMention, Offset: 5, Length: 8}},
			want: "ping [@someone](https://t.me/someone) now",
		},
		{
			name: "mention without handle links numeric id",
			text: "ping Alice now",
			anns: []domain.Annotation{{Type: domain.AnnotationMentionName, Offset: 5, Length: 5, UserID: 42}},
			want: "ping [Alice](https://t.me/42) now",
		},
		{
			name: "repeated literal only annotated occurrence is styled",
			text: "go go go",
			anns: []domain.Annotation{{Type: domain.AnnotationBold, Offset: 3, Length: 2}},
			want: "go **go** go",
		},
		{
			name: "multiple annotations in order",
			text: "bold and italic",
			anns: []domain.Annotation{
				{Type: domain.AnnotationItalic, Offset: 9, Length: 6},
				{Type: domain.AnnotationBold, Offset: 0, Length: 4},
			},
			want: "**bold** and *italic*",
		},
	}

	tr := newTestTranslator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Translate(tt.text, tt.anns)
			if got != tt.want {
				t.Errorf("Translate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslate_UTF16Offsets(t *testing.T) {
	// The emoji is a surrogate pair: two UTF-16 units but one rune. The
	// annotation targets "me" using Telegram's UTF-16 indexing; byte or
	// rune indexing would corrupt the span.
	text := "\U0001F600 call me"
	anns := []domain.Annotation{
		{Type: domain.AnnotationTextLink, Offset: 8, Length: 2, URL: "https://x"},
	}

	got := newTestTranslator().Translate(text, anns)
	want := "\U0001F600 call [me](https://x)"
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslate_SurrogatePairInsideSpan(t *testing.T) {
	// Bold span covers the emoji itself (2 UTF-16 units)
	text := "a \U0001F600 b"
	anns := []domain.Annotation{
		{Type: domain.AnnotationBold, Offset: 2, Length: 2},
	}

	got := newTestTranslator().Translate(text, anns)
	want := "a **\U0001F600** b"
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslate_EscapesUserTypedLinks(t *testing.T) {
	got := newTestTranslator().Translate("see [a](b) here", nil)
	want := `see \[a\](b) here`
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslate_EscapeRunsOnPlainSegmentsOnly(t *testing.T) {
	// The annotated hyperlink must come through unescaped while the
	// user-typed link around it is neutralized.
	text := "[a](b) and me"
	anns := []domain.Annotation{
		{Type: domain.AnnotationTextLink, Offset: 11, Length: 2, URL: "https://x"},
	}

	got := newTestTranslator().Translate(text, anns)
	want := `\[a\](b) and [me](https://x)`
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslate_UnknownAnnotationPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	tr := New(zerolog.New(&buf))

	got := tr.Translate("some text", []domain.Annotation{
		{Type: domain.AnnotationUnknown, Offset: 0, Length: 4},
	})
	if got != "some text" {
		t.Errorf("Translate() = %q, want %q", got, "some text")
	}
	if !strings.Contains(buf.String(), "unknown annotation type") {
		t.Errorf("expected a warning about the unknown annotation, got log %q", buf.String())
	}
}

func TestTranslate_OverlappingAnnotationSkipped(t *testing.T) {
	text := "overlap here"
	anns := []domain.Annotation{
		{Type: domain.AnnotationBold, Offset: 0, Length: 7},
		{Type: domain.AnnotationItalic, Offset: 3, Length: 4},
	}

	got := newTestTranslator().Translate(text, anns)
	want := "**overlap** here"
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslate_AnnotationBeyondTextClamped(t *testing.T) {
	text := "short"
	anns := []domain.Annotation{
		{Type: domain.AnnotationBold, Offset: 0, Length: 50},
	}

	got := newTestTranslator().Translate(text, anns)
	want := "**short**"
	if got != want {
		t.Errorf("Translate() = %q, want %q", got, want)
	}
}

func TestFormatAttribution(t *testing.T) {
	tests := []struct {
		name   string
		origin *domain.ForwardOrigin
		want   string
	}{
		{
			name:   "nil origin renders nothing",
			origin: nil,
			want:   "",
		},
		{
			name:   "hidden account",
			origin: &domain.ForwardOrigin{Kind: domain.OriginHidden, Name: "John D"},
			want:   "Forwarded from John D (Hidden Account)",
		},
		{
			name: "user with all name parts",
			origin: &domain.ForwardOrigin{
				Kind:      domain.OriginUser,
				FirstName: "Jane",
				LastName:  "Doe",
				Username:  "jdoe",
			},
			want: "Forwarded from Jane Doe @jdoe",
		},
		{
			name: "user with first name only",
			origin: &domain.ForwardOrigin{
				Kind:      domain.OriginUser,
				FirstName: "Jane",
			},
			want: "Forwarded from Jane",
		},
		{
			name: "public channel",
			origin: &domain.ForwardOrigin{
				Kind:   domain.OriginChannel,
				Title:  "World News",
				Handle: "worldnews",
			},
			want: "Forwarded from [World News](https://t.me/worldnews)",
		},
		{
			name: "public channel with post author",
			origin: &domain.ForwardOrigin{
				Kind:       domain.OriginChannel,
				Title:      "World News",
				Handle:     "worldnews",
				PostAuthor: "editor",
			},
			want: "Forwarded from [World News](https://t.me/worldnews) by editor",
		},
		{
			name: "private channel",
			origin: &domain.ForwardOrigin{
				Kind:  domain.OriginChannel,
				Title: "Insiders",
			},
			want: "Forwarded from Insiders (Private Channel)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAttribution(tt.origin)
			if got != tt.want {
				t.Errorf("FormatAttribution() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name        string
		attribution string
		body        string
		mediaURLs   []string
		want        string
	}{
		{
			name: "body only",
			body: "hello",
			want: "hello",
		},
		{
			name:        "attribution and body",
			attribution: "Forwarded from X",
			body:        "hello",
			want:        "Forwarded from X\n\nhello",
		},
		{
			name:      "body and media",
			body:      "hello",
			mediaURLs: []string{"https://cdn/x.jpg"},
			want:      "hello\n\nhttps://cdn/x.jpg",
		},
		{
			name:        "all sections",
			attribution: "Forwarded from X",
			body:        "hello",
			mediaURLs:   []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
			want:        "Forwarded from X\n\nhello\n\nhttps://cdn/a.jpg\nhttps://cdn/b.jpg",
		},
		{
			name:      "media only has no leading blank lines",
			mediaURLs: []string{"https://cdn/x.jpg"},
			want:      "https://cdn/x.jpg",
		},
		{
			name: "everything absent",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.attribution, tt.body, tt.mediaURLs)
			if got != tt.want {
				t.Errorf("Compose() = %q, want %q", got, tt.want)
			}
		})
	}
}
