package translator

import (
	"strings"

	"github.com/internationalcrisis/tgbridge/internal/domain"
)

// AttributionLookupFailed is the fixed diagnostic line substituted when
// resolving a forward origin fails. The message itself is still delivered.
const AttributionLookupFailed = "**Unable to fetch the origin of this forwarded message.**"

// FormatAttribution renders the forward attribution line for a resolved
// origin. Returns "" for a nil origin so composition can omit the section.
func FormatAttribution(origin *domain.ForwardOrigin) string {
	if origin == nil {
		return ""
	}

	switch origin.Kind {
	case domain.OriginHidden:
		return "Forwarded from " + origin.Name + " (Hidden Account)"

	case domain.OriginUser:
		parts := make([]string, 0, 3)
		if origin.FirstName != "" {
			parts = append(parts, origin.FirstName)
		}
		if origin.LastName != "" {
			parts = append(parts, origin.LastName)
		}
		if origin.Username != "" {
			parts = append(parts, "@"+origin.Username)
		}
		return "Forwarded from " + strings.Join(parts, " ")

	case domain.OriginChannel:
		if origin.Handle == "" {
			return "Forwarded from " + origin.Title + " (Private Channel)"
		}
		line := "Forwarded from [" + origin.Title + "](" + sourceLinkBase + origin.Handle + ")"
		if origin.PostAuthor != "" {
			line += " by " + origin.PostAuthor
		}
		return line

	default:
		return ""
	}
}
