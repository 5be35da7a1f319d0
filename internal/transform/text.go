package transform

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// RoomNamer is the read-only room query the hashtag rewrite needs. Rewrites
// happen at render time, so a hashtag referencing a since-deleted room falls
// back to literal text and one referencing a new room starts linking.
type RoomNamer interface {
	LookupRoomName(ctx context.Context, name string) (string, bool)
}

var (
	// A hashtag is # plus 1-30 word characters, only after whitespace or at
	// the start of the text. RE2 has no lookbehind, so the leading boundary
	// is captured and re-emitted.
	hashTagPattern = regexp.MustCompile(`(^|\s)#([A-Za-z0-9-_]{1,30})`)

	urlPattern = regexp.MustCompile(`(?i)(?:(?:https?|ftp)://|www\.)\S+`)
)

// TextTransform rewrites message text for rendering: hashtags become room
// links, URLs become anchors, and multiline messages become paste blocks.
// The pipeline is deterministic and does no I/O beyond room-name lookups.
type TextTransform struct {
	rooms RoomNamer
}

// New creates a TextTransform backed by the given room lookup.
func New(rooms RoomNamer) *TextTransform {
	return &TextTransform{rooms: rooms}
}

// Parse runs the chat-message pipeline: hashtag rewriting first, then paste
// wrapping. URL extraction runs separately via TransformAndExtractURLs so the
// caller can collect the side-channel result set.
func (t *TextTransform) Parse(ctx context.Context, message string) string {
	return convertTextWithNewLines(t.ConvertHashtagsToRoomLinks(ctx, message))
}

// ConvertHashtagsToRoomLinks replaces #name with a room-link anchor when a
// room with that exact name exists; otherwise the hashtag stays literal.
func (t *TextTransform) ConvertHashtagsToRoomLinks(ctx context.Context, message string) string {
	return hashTagPattern.ReplaceAllStringFunc(message, func(match string) string {
		groups := hashTagPattern.FindStringSubmatch(match)
		prefix, roomName := groups[1], groups[2]

		if _, ok := t.rooms.LookupRoomName(ctx, roomName); !ok {
			return match
		}
		return fmt.Sprintf("%s<a href=\"#/rooms/%s\" title=\"#%s\">#%s</a>",
			prefix, roomName, roomName, roomName)
	})
}

// TransformAndExtractURLs replaces well-formed URLs with anchor tags and
// returns the distinct accepted URLs for downstream enrichment. Candidates
// that do not parse as absolute URIs are left as literal text. Bare www.
// matches are normalized to http://. De-duplication is case-insensitive,
// preserving first-seen casing and order.
func TransformAndExtractURLs(message string) (string, []string) {
	var urls []string
	seen := make(map[string]struct{})

	transformed := urlPattern.ReplaceAllStringFunc(message, func(match string) string {
		candidate := html.UnescapeString(match)
		if !strings.Contains(candidate, "://") {
			candidate = "http://" + candidate
		}

		parsed, err := url.Parse(candidate)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return match
		}

		key := strings.ToLower(candidate)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			urls = append(urls, candidate)
		}

		return fmt.Sprintf("<a rel=\"nofollow external\" target=\"_blank\" href=\"%s\" title=\"%s\">%s</a>",
			html.EscapeString(candidate), match, match)
	})

	return transformed, urls
}

// ConvertURLsAndRoomLinks is the topic/welcome rendering path: hashtags are
// rewritten before URL anchors are finalized, and the extracted set is
// discarded since stored room text is never enriched.
func (t *TextTransform) ConvertURLsAndRoomLinks(ctx context.Context, message string) string {
	message = t.ConvertHashtagsToRoomLinks(ctx, message)
	message, _ = TransformAndExtractURLs(message)
	return message
}

// convertTextWithNewLines wraps messages containing a line break in a
// collapsible paste block instead of rendering them inline.
func convertTextWithNewLines(message string) string {
	if !strings.Contains(message, "\n") {
		return message
	}
	return fmt.Sprintf(`
<div class="collapsible_content">
    <h3 class="collapsible_title">Paste (click to show/hide)</h3>
    <div class="collapsible_box">
        <pre class="multiline">%s</pre>
    </div>
</div>
`, message)
}
