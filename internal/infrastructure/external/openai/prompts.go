package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You explain invoice and bank transaction matches succinctly."

const defaultUserTemplate = `Explain in two sentences why this invoice and bank transaction were scored {{.Score}} ({{.Confidence}} confidence).
Invoice: {{.InvoiceAmount}} {{.InvoiceCurrency}}{{if .InvoiceDate}} dated {{.InvoiceDate}}{{end}}{{if .VendorName}} from {{.VendorName}}{{end}}{{if .InvoiceDescription}}, "{{.InvoiceDescription}}"{{end}}.
Transaction: {{.TransactionAmount}} {{.TransactionCurrency}} posted {{.TransactionPostedAt}}{{if .TransactionDescription}}, memo "{{.TransactionDescription}}"{{end}}.
Scoring breakdown: {{.Reasoning}}`

// PromptConfig holds the prompt and model parameters used for match explanations
type PromptConfig struct {
	MatchExplanation struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"match_explanation"`
}

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	var prompts PromptConfig
	prompts.MatchExplanation.Temperature = 0.2
	prompts.MatchExplanation.MaxTokens = 200
	prompts.MatchExplanation.System = defaultSystemPrompt
	prompts.MatchExplanation.UserTemplate = defaultUserTemplate
	return &prompts
}

// LoadPrompts reads a YAML prompt file; fields it leaves empty keep their defaults
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	m := override.MatchExplanation
	if m.Temperature > 0 {
		prompts.MatchExplanation.Temperature = m.Temperature
	}
	if m.MaxTokens > 0 {
		prompts.MatchExplanation.MaxTokens = m.MaxTokens
	}
	if m.System != "" {
		prompts.MatchExplanation.System = m.System
	}
	if m.UserTemplate != "" {
		if _, err := template.New("prompt").Parse(m.UserTemplate); err != nil {
			return nil, fmt.Errorf("invalid user_template: %w", err)
		}
		prompts.MatchExplanation.UserTemplate = m.UserTemplate
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
