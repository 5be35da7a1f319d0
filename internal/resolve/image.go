package resolve

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// ImageProvider matches URLs ending in a known image extension and renders an
// inline thumbnail without fetching the resource.
type ImageProvider struct{}

// NewImageProvider creates the image-extension provider.
func NewImageProvider() *ImageProvider {
	return &ImageProvider{}
}

func (p *ImageProvider) IsValidContent(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := imageExtensions[ext]
	return ok
}

func (p *ImageProvider) GetContent(_ context.Context, req *Request) (*ContentResult, error) {
	link := req.URL.String()
	escaped := html.EscapeString(link)
	return &ContentResult{
		URL:   link,
		Title: path.Base(req.URL.Path),
		Content: fmt.Sprintf(`<a rel="nofollow external" target="_blank" href="%s"><img src="%s" alt="%s" /></a>`,
			escaped, escaped, escaped),
	}, nil
}
