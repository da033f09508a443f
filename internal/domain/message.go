package domain

import "time"

// AnnotationType enumerates the rich-text annotation kinds the translator
// understands. The zero value is deliberately AnnotationUnknown so that
// unmapped source entities fall through to the pass-through arm.
type AnnotationType int

const (
	AnnotationUnknown AnnotationType = iota
	AnnotationBold
	AnnotationItalic
	AnnotationCode
	AnnotationStrikethrough
	AnnotationUnderline
	AnnotationPre
	AnnotationURL
	AnnotationTextLink
	AnnotationMention
	AnnotationMentionName
)

// String returns a short name for logging
func (t AnnotationType) String() string {
	switch t {
	case AnnotationBold:
		return "bold"
	case AnnotationItalic:
		return "italic"
	case AnnotationCode:
		return "code"
	case AnnotationStrikethrough:
		return "strikethrough"
	case AnnotationUnderline:
		return "underline"
	case AnnotationPre:
		return "pre"
	case AnnotationURL:
		return "url"
	case AnnotationTextLink:
		return "text_link"
	case AnnotationMention:
		return "mention"
	case AnnotationMentionName:
		return "mention_name"
	default:
		return "unknown"
	}
}

// Annotation is a typed, span-located rich-text marking on message text.
// Offset and Length are measured in UTF-16 code units, Telegram's native
// text indexing, not bytes or runes.
type Annotation struct {
	Type     AnnotationType
	Offset   int
	Length   int
	URL      string // text_link target
	UserID   int64  // mention_name target
	Language string // pre language tag
}

// Media describes an attachment on a message. Location carries the
// transport-specific file reference consumed by the downloader; the bridge
// core treats it as opaque.
type Media struct {
	Location    any
	Ext         string
	MimeType    string
	Size        int64
	PreviewOnly bool // link preview without a real attachment
}

// ChatInfo is the display metadata of a source chat, including the avatar
// descriptor used for relocation.
type ChatInfo struct {
	ID            int64
	Title         string
	Username      string
	HasPhoto      bool
	PhotoLocation any
}

// ForwardHeader is the raw forward metadata attached to a message. Resolving
// it into a ForwardOrigin may require API lookups and can fail.
type ForwardHeader struct {
	FromUserID        int64
	FromUserAccess    int64
	FromChannelID     int64
	FromChannelAccess int64
	FromName          string // set when the forwarder hid their account
	PostAuthor        string
}

// OriginKind tags the resolved origin of a forwarded message.
type OriginKind int

const (
	OriginHidden OriginKind = iota
	OriginUser
	OriginChannel
)

// ForwardOrigin is the resolved origin of a forwarded message.
type ForwardOrigin struct {
	Kind OriginKind

	// OriginHidden
	Name string

	// OriginUser
	FirstName string
	LastName  string
	Username  string

	// OriginChannel
	Title      string
	Handle     string // empty for private channels
	PostAuthor string
}

// Message is one inbound message event as exposed by the event source.
type Message struct {
	ChannelID   int64
	MessageID   int
	SenderID    int64
	Text        string
	Annotations []Annotation
	Forward     *ForwardHeader
	Media       *Media
	Chat        ChatInfo
	GroupedID   int64 // non-zero for album members
	Date        time.Time
}

// SendParams is the compose payload accepted by a destination sink.
type SendParams struct {
	Content   string `json:"content"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
