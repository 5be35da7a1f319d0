package resolve

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

type stubProvider struct {
	match  bool
	result *ContentResult
	err    error
	delay  time.Duration
}

func (s *stubProvider) IsValidContent(_ *url.URL) bool { return s.match }

func (s *stubProvider) GetContent(ctx context.Context, _ *Request) (*ContentResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}

func TestExtractResourceFaultDominatesSuccess(t *testing.T) {
	fast := &stubProvider{match: true, result: &ContentResult{Content: "preview X"}}
	failing := &stubProvider{match: true, err: errors.New("boom"), delay: 10 * time.Millisecond}
	p := NewProcessor(time.Second, fast, failing)

	result, err := p.ExtractResource(context.Background(), "http://x.test/a")
	if err == nil {
		t.Fatalf("expected the provider fault to fail the resolution, got result %v", result)
	}
	if result != nil {
		t.Fatalf("expected no result alongside a fault, got %v", result)
	}
}

func TestExtractResourceRegistrationOrderWins(t *testing.T) {
	slow := &stubProvider{match: true, result: &ContentResult{Content: "from first"}, delay: 20 * time.Millisecond}
	fast := &stubProvider{match: true, result: &ContentResult{Content: "from second"}}
	p := NewProcessor(time.Second, slow, fast)

	result, err := p.ExtractResource(context.Background(), "http://x.test/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Content != "from first" {
		t.Fatalf("expected first registered provider to win regardless of timing, got %v", result)
	}
}

func TestExtractResourceSkipsNilResults(t *testing.T) {
	empty := &stubProvider{match: true}
	second := &stubProvider{match: true, result: &ContentResult{Content: "preview Y"}}
	p := NewProcessor(time.Second, empty, second)

	result, err := p.ExtractResource(context.Background(), "http://x.test/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Content != "preview Y" {
		t.Fatalf("expected later provider's content when earlier returns nothing, got %v", result)
	}
}

func TestExtractResourceCancellation(t *testing.T) {
	slow := &stubProvider{match: true, result: &ContentResult{Content: "late"}, delay: time.Second}
	p := NewProcessor(time.Second, slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.ExtractResource(ctx, "http://x.test/a")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation outcome, got result=%v err=%v", result, err)
	}
}

func TestExtractResourceNoMatchingProvider(t *testing.T) {
	p := NewProcessor(time.Second, &stubProvider{match: false})

	result, err := p.ExtractResource(context.Background(), "http://x.test/a")
	if err != nil || result != nil {
		t.Fatalf("expected nil resolution for unmatched url, got result=%v err=%v", result, err)
	}
}

func TestExtractResourceRelativeURLResolvesNil(t *testing.T) {
	p := NewProcessor(time.Second, &stubProvider{match: true, result: &ContentResult{Content: "x"}})

	result, err := p.ExtractResource(context.Background(), "not a url")
	if err != nil || result != nil {
		t.Fatalf("expected nil resolution for relative input, got result=%v err=%v", result, err)
	}
}
