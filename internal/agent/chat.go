package agent

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// KindInsightGenerator produces narrative summaries of analytics
// output. It calls an LLM, so it is never cacheable.
const KindInsightGenerator = "insight-generator"

const defaultInsightSystemPrompt = "You are a manufacturing analytics assistant. " +
	"Summarize the supplied analytics output for a plant manager: call out the " +
	"headline numbers, anything below target, and one concrete recommendation. " +
	"Keep it under 150 words."

const defaultChatTimeout = 60 * time.Second

// ChatConfig describes the LLM backing the insight generator.
type ChatConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature *float32
	MaxTokens   *int
	Timeout     time.Duration
}

// ChatInvoker serves insight-generator through an OpenAI-compatible
// chat model.
type ChatInvoker struct {
	model einomodel.ToolCallingChatModel
	cfg   ChatConfig
}

// NewChatInvoker builds the chat model for cfg.
func NewChatInvoker(ctx context.Context, cfg ChatConfig) (*ChatInvoker, error) {
	if cfg.Model == "" {
		return nil, types.NewConfigurationError("chat agent: model is required")
	}

	chatConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Provider {
		case "openai", "":
			baseURL = "https://api.openai.com/v1"
		case "deepseek":
			baseURL = "https://api.deepseek.com/v1"
		}
	}
	if baseURL != "" {
		chatConfig.BaseURL = baseURL
	}
	if cfg.Temperature != nil {
		chatConfig.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		chatConfig.MaxTokens = cfg.MaxTokens
	}

	m, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChatTimeout
	}
	return &ChatInvoker{model: m, cfg: cfg}, nil
}

// Invoke renders the input payload into the prompt and generates one
// completion. Transport failures come back as errors for upstream
// retryability classification.
func (c *ChatInvoker) Invoke(ctx context.Context, kind string, input, _, config map[string]any) (*Result, error) {
	if kind != KindInsightGenerator {
		return nil, types.NewConfigurationError("unknown agent kind: " + kind)
	}

	system := defaultInsightSystemPrompt
	if s, ok := config["system_prompt"].(string); ok && s != "" {
		system = s
	}
	prompt := "Summarize this analytics output."
	if p, ok := config["prompt"].(string); ok && p != "" {
		prompt = p
	}

	payload, err := sonic.ConfigStd.MarshalToString(input)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(prompt + "\n\n" + payload),
	})
	if err != nil {
		return nil, err
	}

	output := map[string]any{
		"insight": resp.Content,
		"model":   c.cfg.Model,
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		output["total_tokens"] = float64(resp.ResponseMeta.Usage.TotalTokens)
	}
	return &Result{Success: true, Output: output}, nil
}
