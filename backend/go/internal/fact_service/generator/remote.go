package generator

import (
	"FactVerse/backend/go/internal/llm"
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/circuitbreaker"
	"FactVerse/backend/go/pkg/logger"
	"FactVerse/backend/go/pkg/ratelimiter"
	"context"
	"fmt"
	"strings"
	"time"
)

// Slot identifies the role a remote backend plays in the selection policy.
type Slot int

const (
	// SlotPrimary is the high-quota, lower-confidence remote backend.
	SlotPrimary Slot = iota
	// SlotSecondary is the low-quota, higher-confidence remote backend.
	SlotSecondary
)

// Generation parameters shared by both remote slots.
const (
	DefaultTemperature float32 = 0.7
	DefaultTopP        float32 = 0.8
	DefaultTopK                = 40
	DefaultTimeout             = 30 * time.Second
)

type slotProfile struct {
	confidence float64
	maxTokens  int
	prompt     func(models.Category, models.Difficulty) string
}

var slotProfiles = map[Slot]slotProfile{
	SlotPrimary:   {confidence: 0.7, maxTokens: 200, prompt: ShortPrompt},
	SlotSecondary: {confidence: 0.85, maxTokens: 300, prompt: DetailedPrompt},
}

// providerLabels maps a provider name to its id prefix and source label.
var providerLabels = map[string]struct{ prefix, source string }{
	"huggingface": {"hf_", "Hugging Face AI"},
	"ollama":      {"ollama_", "Ollama"},
	"gemini":      {"gemini_", "Google Gemini AI"},
	"openai":      {"openai_", "OpenAI"},
}

// RemoteBackend wraps a text-generation client with a quota, a circuit breaker
// and a timeout.
type RemoteBackend struct {
	provider string
	slot     Slot
	profile  slotProfile
	tmpl     factTemplate
	client   llm.LLM
	quota    ratelimiter.Quota
	breaker  circuitbreaker.CircuitBreaker
	timeout  time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// RemoteOption configures a RemoteBackend.
type RemoteOption func(*RemoteBackend)

// WithBreaker guards the backend with a circuit breaker.
func WithBreaker(b circuitbreaker.CircuitBreaker) RemoteOption {
	return func(r *RemoteBackend) { r.breaker = b }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteBackend) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) RemoteOption {
	return func(r *RemoteBackend) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger for quota bookkeeping failures.
func WithLogger(l *logger.Logger) RemoteOption {
	return func(r *RemoteBackend) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRemoteBackend creates a remote backend for provider in the given slot.
func NewRemoteBackend(provider string, slot Slot, client llm.LLM, quota ratelimiter.Quota, opts ...RemoteOption) (*RemoteBackend, error) {
	labels, ok := providerLabels[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	profile, ok := slotProfiles[slot]
	if !ok {
		return nil, fmt.Errorf("unknown slot %d", slot)
	}
	if client == nil || quota == nil {
		return nil, ErrNotConfigured
	}
	r := &RemoteBackend{
		provider: provider,
		slot:     slot,
		profile:  profile,
		tmpl: factTemplate{
			idPrefix:    labels.prefix,
			source:      labels.source,
			verified:    false,
			aiGenerated: true,
			confidence:  profile.confidence,
		},
		client:  client,
		quota:   quota,
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name implements Backend.
func (r *RemoteBackend) Name() string { return r.provider }

// Available implements Remote.
func (r *RemoteBackend) Available(ctx context.Context) bool {
	ok, err := r.quota.Available(ctx)
	if err != nil {
		r.log.WithError(models.ErrorInfoFrom(err, "quota_error")).Warn("quota check failed")
		return false
	}
	return ok
}

// Generate implements Backend.
func (r *RemoteBackend) Generate(ctx context.Context, req Request) (models.Fact, error) {
	ok, err := r.quota.Available(ctx)
	if err != nil {
		return models.Fact{}, fmt.Errorf("%s quota check: %w", r.provider, err)
	}
	if !ok {
		return models.Fact{}, fmt.Errorf("%s: %w", r.provider, ErrQuotaExceeded)
	}

	text, err := r.call(ctx, req)
	if err != nil {
		return models.Fact{}, fmt.Errorf("%s: %w", r.provider, err)
	}

	if err := r.quota.Record(ctx); err != nil {
		r.log.WithError(models.ErrorInfoFrom(err, "quota_error")).Warn("failed to record quota usage")
	}
	return r.tmpl.build(text, req, r.now()), nil
}

func (r *RemoteBackend) call(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	do := func() (interface{}, error) {
		resp, err := r.client.GenerateContent(ctx, &models.GenerateContentRequest{
			Prompt:      r.profile.prompt(req.Category, req.Difficulty),
			Temperature: DefaultTemperature,
			MaxTokens:   r.profile.maxTokens,
			TopP:        DefaultTopP,
			TopK:        DefaultTopK,
		})
		if err != nil {
			return nil, err
		}
		text := ""
		if resp != nil {
			text = strings.TrimSpace(resp.Text)
		}
		if text == "" {
			return nil, ErrEmptyResponse
		}
		return text, nil
	}

	var (
		res interface{}
		err error
	)
	if r.breaker != nil {
		res, err = r.breaker.Execute(do)
	} else {
		res, err = do()
	}
	if err != nil {
		return "", err
	}
	return res.(string), nil
}
