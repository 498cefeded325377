package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/scoring"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// SourceOpenAI marks explanations written by the model
const SourceOpenAI = "openai"

// Config configures the explainer client
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Explainer implements port.Explainer using the chat completions API
type Explainer struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewExplainer creates an explainer. prompts may be nil to use the defaults.
func NewExplainer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Explainer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	return &Explainer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

type promptData struct {
	Score                  string
	Confidence             string
	InvoiceAmount          string
	InvoiceCurrency        string
	InvoiceDate            string
	InvoiceDescription     string
	VendorName             string
	TransactionAmount      string
	TransactionCurrency    string
	TransactionPostedAt    string
	TransactionDescription string
	Reasoning              string
}

// Explain asks the model for a short explanation of a scored pair
func (e *Explainer) Explain(ctx context.Context, req port.ExplanationRequest) (*port.Explanation, error) {
	confidence := scoring.ConfidenceLabel(req.Score)

	data := promptData{
		Score:                  req.Score.StringFixed(4),
		Confidence:             confidence,
		InvoiceAmount:          req.InvoiceAmount.StringFixed(2),
		InvoiceCurrency:        req.InvoiceCurrency,
		InvoiceDescription:     req.InvoiceDescription,
		VendorName:             req.VendorName,
		TransactionAmount:      req.TransactionAmount.StringFixed(2),
		TransactionCurrency:    req.TransactionCurrency,
		TransactionPostedAt:    req.TransactionPostedAt.Format("2006-01-02"),
		TransactionDescription: req.TransactionDescription,
		Reasoning:              req.Reasoning,
	}
	if req.InvoiceDate != nil {
		data.InvoiceDate = req.InvoiceDate.Format("2006-01-02")
	}

	prompt, err := renderTemplate(e.prompts.MatchExplanation.UserTemplate, data)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.prompts.MatchExplanation.Temperature,
		MaxTokens:   e.prompts.MatchExplanation.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.prompts.MatchExplanation.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	e.logger.Debug("Match explanation generated",
		zap.String("model", e.model),
		zap.String("confidence", confidence),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return &port.Explanation{
		Text:       text,
		Confidence: confidence,
		Source:     SourceOpenAI,
	}, nil
}

var _ port.Explainer = (*Explainer)(nil)
