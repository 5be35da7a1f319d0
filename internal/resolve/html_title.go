package resolve

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// maxPageBytes bounds how much of a page is read looking for a title.
const maxPageBytes = 64 << 10

// HTMLTitleProvider is the fallback provider: it accepts any http(s) URL and
// extracts the page title as a plain link preview.
type HTMLTitleProvider struct {
	client *http.Client
}

// NewHTMLTitleProvider creates the generic page-title provider. A nil client
// falls back to http.DefaultClient.
func NewHTMLTitleProvider(client *http.Client) *HTMLTitleProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLTitleProvider{client: client}
}

func (p *HTMLTitleProvider) IsValidContent(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func (p *HTMLTitleProvider) GetContent(ctx context.Context, req *Request) (*ContentResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", req.URL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	match := titlePattern.FindSubmatch(body)
	if match == nil {
		return nil, nil
	}
	title := strings.TrimSpace(html.UnescapeString(string(match[1])))
	if title == "" {
		return nil, nil
	}

	link := req.URL.String()
	return &ContentResult{
		URL:   link,
		Title: title,
		Content: fmt.Sprintf(`<a rel="nofollow external" target="_blank" href="%s">%s</a>`,
			html.EscapeString(link), html.EscapeString(title)),
	}, nil
}
