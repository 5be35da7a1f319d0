package resolve

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// Processor races every matching provider for a URL and resolves a single
// outcome. The aggregation policy is fault-dominant and deterministic:
//
//  1. any provider error fails the whole resolution (first fault in
//     registration order wins, successful siblings are discarded)
//  2. otherwise any cancelled attempt makes the resolution cancelled
//  3. otherwise the first non-nil result in provider-registration order wins,
//     regardless of completion order
//  4. all-nil successes resolve to nil: no enrichment
type Processor struct {
	providers []Provider
	timeout   time.Duration
}

// NewProcessor creates a Processor over the given providers. Registration
// order is significant: it is the tie-break among successful results.
func NewProcessor(timeout time.Duration, providers ...Provider) *Processor {
	return &Processor{providers: providers, timeout: timeout}
}

type attempt struct {
	result *ContentResult
	err    error
}

// ExtractResource resolves content for a raw URL. A URL that does not parse
// as absolute, or that no provider matches, resolves to nil without error.
func (p *Processor) ExtractResource(ctx context.Context, rawURL string) (*ContentResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, nil
	}

	var valid []Provider
	for _, provider := range p.providers {
		if provider.IsValidContent(parsed) {
			valid = append(valid, provider)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req := &Request{URL: parsed}
	attempts := make([]attempt, len(valid))
	done := make(chan int, len(valid))

	for i, provider := range valid {
		go func(i int, provider Provider) {
			result, err := provider.GetContent(ctx, req)
			attempts[i] = attempt{result: result, err: err}
			done <- i
		}(i, provider)
	}

	for range valid {
		<-done
	}

	var cancelled bool
	for _, a := range attempts {
		if a.err == nil {
			continue
		}
		if errors.Is(a.err, context.Canceled) || errors.Is(a.err, context.DeadlineExceeded) {
			cancelled = true
			continue
		}
		return nil, a.err
	}
	if cancelled {
		return nil, context.Canceled
	}

	for _, a := range attempts {
		if a.result != nil && a.result.Content != "" {
			return a.result, nil
		}
	}
	return nil, nil
}
