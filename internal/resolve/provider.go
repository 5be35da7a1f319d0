package resolve

import (
	"context"
	"net/url"
)

// ContentResult is the extracted preview for a URL. Exactly one provider wins
// per URL; its fragment is appended to the message it enriches.
type ContentResult struct {
	URL     string
	Title   string
	Content string
}

// Request carries the parsed URL a provider should fetch.
type Request struct {
	URL *url.URL
}

// Provider extracts preview content for URLs it recognizes. Providers are
// independent and pluggable; any number of them may match a given URL.
type Provider interface {
	// IsValidContent reports whether the provider wants this URL.
	IsValidContent(u *url.URL) bool
	// GetContent fetches and extracts content. A nil result with a nil error
	// means the provider had nothing to contribute.
	GetContent(ctx context.Context, req *Request) (*ContentResult, error)
}
