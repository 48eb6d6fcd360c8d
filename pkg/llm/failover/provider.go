package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"travelogue/pkg/llm"
	"travelogue/pkg/logging"
	"travelogue/pkg/request"
)

// Provider wraps multiple LLM providers and handles fallbacks.
type Provider struct {
	providers []llm.Provider
	disabled  map[int]bool
	backoffs  map[string]*backoffState // key: providerName:profile
	mu        sync.RWMutex

	retries    int
	retryDelay time.Duration
}

type backoffState struct {
	subsequentFailures int
	skippedRequests    int
}

// New creates a new Provider with failover and unified history logging.
// providers is the ordered fallback chain.
func New(providers ...llm.Provider) (*Provider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider required for failover")
	}
	return &Provider{
		providers:  providers,
		disabled:   make(map[int]bool),
		backoffs:   make(map[string]*backoffState),
		retries:    3,
		retryDelay: time.Second,
	}, nil
}

// Name implements llm.Provider.
func (f *Provider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

// HealthCheck verifies that at least one provider is healthy.
func (f *Provider) HealthCheck(ctx context.Context) error {
	f.mu.RLock()
	disabled := make(map[int]bool, len(f.disabled))
	for k, v := range f.disabled {
		disabled[k] = v
	}
	f.mu.RUnlock()

	var errs []error
	for i, p := range f.providers {
		if disabled[i] {
			continue
		}
		err := p.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("no providers available in failover chain")
	}
	return fmt.Errorf("all LLM providers failed health check: %w", errors.Join(errs...))
}

// Generate implements llm.Provider by walking the chain.
func (f *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	type candidate struct {
		index int
		p     llm.Provider
	}
	var candidates []candidate

	f.mu.RLock()
	for i, p := range f.providers {
		if !f.disabled[i] {
			candidates = append(candidates, candidate{i, p})
		}
	}
	f.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no active provider for profile %q", req.Profile)
	}

	for idx, c := range candidates {
		name := c.p.Name()
		backoffKey := name + ":" + req.Profile
		isLast := idx == len(candidates)-1

		// Smart backoff: a provider that failed n times in a row sits out n requests.
		// The last candidate is always tried.
		f.mu.Lock()
		bs, exists := f.backoffs[backoffKey]
		if !isLast && exists && bs.skippedRequests < bs.subsequentFailures {
			bs.skippedRequests++
			slog.Debug("LLM Provider in backoff, skipping", "provider", name, "profile", req.Profile, "skipped", bs.skippedRequests, "target", bs.subsequentFailures)
			f.mu.Unlock()
			continue
		}
		f.mu.Unlock()

		resp, err := f.call(ctx, c.p, req)
		if err == nil {
			f.resetBackoff(backoffKey)
			return resp, nil
		}

		if ctx.Err() != nil {
			return nil, err
		}

		if isUnrecoverable(err) {
			if !isLast {
				slog.Warn("LLM Provider fatal error, disabling for the session", "provider", name, "error", err)
				f.mu.Lock()
				f.disabled[c.index] = true
				f.mu.Unlock()
				continue
			}
			return nil, err
		}

		f.mu.Lock()
		bs, exists = f.backoffs[backoffKey]
		if !exists {
			bs = &backoffState{}
			f.backoffs[backoffKey] = bs
		}
		bs.subsequentFailures++
		bs.skippedRequests = 0
		failures := bs.subsequentFailures
		f.mu.Unlock()

		if !isLast {
			slog.Info("LLM Provider failed (retryable), falling back", "provider", name, "next", candidates[idx+1].p.Name(), "error", err, "backoff_failures", failures)
			continue
		}

		resp, err = f.retryLast(ctx, c.p, req)
		if err == nil {
			f.resetBackoff(backoffKey)
		}
		return resp, err
	}

	return nil, fmt.Errorf("all LLM providers exhausted for profile %q", req.Profile)
}

func (f *Provider) retryLast(ctx context.Context, p llm.Provider, req llm.Request) (*llm.Response, error) {
	var lastErr error
	delay := f.retryDelay
	for attempt := 1; attempt <= f.retries; attempt++ {
		slog.Warn("Last LLM provider failed, retrying with backoff", "provider", p.Name(), "attempt", attempt, "delay", delay)
		if err := request.Sleep(ctx, delay); err != nil {
			return nil, err
		}

		resp, err := f.call(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if isUnrecoverable(err) {
			return nil, fmt.Errorf("last provider failed with fatal error: %w", err)
		}
		delay *= 2
	}
	return nil, fmt.Errorf("last provider exhausted after %d retries: %w", f.retries, lastErr)
}

// call runs one provider and records the exchange in the LLM history.
func (f *Provider) call(ctx context.Context, p llm.Provider, req llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := p.Generate(ctx, req)

	ex := &logging.LLMExchange{
		Provider: p.Name(),
		Profile:  req.Profile,
		System:   req.System,
		User:     req.User,
		Err:      err,
		Duration: time.Since(start),
	}
	if resp != nil {
		ex.Model = resp.Model
		ex.Response = llm.WordWrap(resp.Text, 80)
	}
	logging.LogLLMExchange(ex)

	return resp, err
}

func (f *Provider) resetBackoff(key string) {
	f.mu.Lock()
	delete(f.backoffs, key)
	f.mu.Unlock()
}

// isUnrecoverable identifies errors that should trigger a circuit break (unless it's the last provider).
func isUnrecoverable(err error) bool {
	if err == nil {
		return false
	}
	var se *request.StatusError
	if errors.As(err, &se) {
		return se.Code == 401 || se.Code == 403
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// 429 and 400 are not fatal: rate limits pass and a 400 may be prompt specific.
	return strings.Contains(msg, "status 401") || strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "api key not valid")
}
