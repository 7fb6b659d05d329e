package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

const (
	defaultMaxTokens  = 8192
	defaultMaxRetries = 3
	defaultRetryBase  = time.Second
)

// Options configures a Client.
type Options struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	MaxTokens         int
	Temperature       float64
	MaxRetries        int
	RetryBase         time.Duration
	RequestsPerMinute int
}

// Client is a Completer backed by a langchaingo model.
type Client struct {
	provider Provider
	opts     Options
	limiter  *rate.Limiter
	log      zerolog.Logger

	build func(ctx context.Context) (llms.Model, error)
	mu    sync.Mutex
	model llms.Model
}

// NewClient validates opts and returns a client whose model is created on
// first use.
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	p, err := LookupProvider(opts.Provider)
	if err != nil {
		return nil, err
	}
	c := newClient(p, opts, log)
	c.build = c.newModel
	return c, nil
}

// NewClientWithModel wraps an existing langchaingo model.
func NewClientWithModel(opts Options, model llms.Model, log zerolog.Logger) *Client {
	p, err := LookupProvider(opts.Provider)
	if err != nil {
		p = Provider{Name: opts.Provider}
	}
	c := newClient(p, opts, log)
	c.build = func(context.Context) (llms.Model, error) { return model, nil }
	return c
}

func newClient(p Provider, opts Options, log zerolog.Logger) *Client {
	if opts.Model == "" {
		opts.Model = p.DefaultModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = defaultRetryBase
	}
	c := &Client{provider: p, opts: opts, log: log.With().Str("provider", p.Name).Str("model", opts.Model).Logger()}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return c
}

func (c *Client) Name() string { return c.provider.Name }

// Model returns the resolved model name.
func (c *Client) Model() string { return c.opts.Model }

func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}
	model, err := c.ensureModel(ctx)
	if err != nil {
		return Response{}, err
	}

	msgs := c.messages(req)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.opts.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.opts.Temperature
	}
	callOpts := []llms.CallOption{
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temp),
	}

	start := time.Now()
	var content string
	attempts := 0
	err = retryWithBackoff(ctx, c.opts.MaxRetries, c.opts.RetryBase, func() error {
		attempts++
		resp, err := model.GenerateContent(ctx, msgs, callOpts...)
		if err != nil {
			c.log.Debug().Err(err).Int("attempt", attempts).Msg("generate content failed")
			return classify(c.provider.Name, err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return fmt.Errorf("%s returned no choices", c.provider.Name)
		}
		content = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("%s completion: %w", c.provider.Name, err)
	}
	c.log.Debug().
		Int("attempts", attempts).
		Int("prompt_bytes", len(req.Prompt)).
		Int("response_bytes", len(content)).
		Dur("elapsed", time.Since(start)).
		Msg("completion finished")
	return Response{Content: content}, nil
}

func (c *Client) messages(req Request) []llms.MessageContent {
	// Gemini takes a single user turn; the system prompt is prepended to it.
	if c.provider.Name == "gemini" {
		prompt := req.Prompt
		if req.System != "" {
			prompt = req.System + "\n\n" + req.Prompt
		}
		return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	}
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
}

// ensureModel builds the model on first use. A failed build is not kept, so
// a cancelled context or a key set after startup does not poison later calls.
func (c *Client) ensureModel(ctx context.Context) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil {
		return c.model, nil
	}
	model, err := c.build(ctx)
	if err != nil {
		return nil, err
	}
	c.model = model
	return model, nil
}

func (c *Client) newModel(ctx context.Context) (llms.Model, error) {
	key := c.opts.APIKey
	if key == "" {
		key = c.provider.APIKey()
	}
	if key == "" && c.provider.NeedsKey() {
		return nil, &AuthError{Provider: c.provider.Name, Message: fmt.Sprintf("%s environment variable is not set", c.provider.KeyEnv[0])}
	}
	baseURL := c.opts.BaseURL
	if baseURL == "" {
		baseURL = c.provider.BaseURL()
	}

	var (
		model llms.Model
		err   error
	)
	switch c.provider.Name {
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithToken(key), anthropic.WithModel(c.opts.Model)}
		if baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(baseURL))
		}
		model, err = anthropic.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithToken(key), openai.WithModel(c.opts.Model)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		model, err = openai.New(opts...)
	case "gemini":
		model, err = googleai.New(ctx, googleai.WithAPIKey(key), googleai.WithDefaultModel(c.opts.Model))
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(c.opts.Model))
	default:
		return nil, fmt.Errorf("unknown provider: %s", c.provider.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", c.provider.Name, err)
	}
	c.log.Debug().Msg("model created")
	return model, nil
}
