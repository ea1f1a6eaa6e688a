package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini adapts the genai SDK. Function call arguments arrive as maps and
// call ids are optional, so missing ids are synthesised.
type Gemini struct {
	models      contentGenerator
	model       string
	temperature float32
	validator   *ArgumentValidator
}

var _ contractx.Provider = (*Gemini)(nil)

type GeminiConfig struct {
	APIKey      string
	Backend     string
	Project     string
	Location    string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini model is required")
	}
	backend := genai.BackendUnspecified
	switch cfg.Backend {
	case genai.BackendGeminiAPI.String():
		backend = genai.BackendGeminiAPI
	case genai.BackendVertexAI.String():
		backend = genai.BackendVertexAI
	}
	cc := &genai.ClientConfig{
		APIKey:   cfg.APIKey,
		Backend:  backend,
		Project:  cfg.Project,
		Location: cfg.Location,
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGemini(client.Models, cfg.Model, cfg.Temperature), nil
}

func newGemini(models contentGenerator, model string, temperature float32) *Gemini {
	return &Gemini{
		models:      models,
		model:       strings.TrimSpace(model),
		temperature: temperature,
		validator:   NewArgumentValidator(),
	}
}

func (p *Gemini) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	temp := p.temperature
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		funcs := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			params, err := geminiSchema(t.Parameters)
			if err != nil {
				return contractx.Completion{}, fmt.Errorf("encode schema for %s: %w", t.Name, err)
			}
			funcs = append(funcs, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: funcs}}
	}

	resp, err := p.models.GenerateContent(ctx, p.model, geminiContents(req.Window), config)
	if err != nil {
		return contractx.Completion{}, unavailable("gemini", err)
	}
	text, calls := fromGeminiResponse(resp)
	return normalize(text, calls, req.Tools, p.validator)
}

func geminiContents(window []contractx.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(window))
	for _, m := range window {
		switch m.Role {
		case contractx.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case contractx.RoleAssistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name,
					Args: tc.Args,
				}})
			}
			contents = append(contents, c)
		case contractx.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: toolResponse(m.Content),
				}}},
			})
		}
	}
	return contents
}

// toolResponse wraps a serialised tool result in the object genai expects.
func toolResponse(content string) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err == nil && decoded != nil {
		if _, ok := decoded["error"]; ok {
			return decoded
		}
		return map[string]any{"output": decoded}
	}
	return map[string]any{"output": content}
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (string, []rawCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var (
		text  strings.Builder
		calls []rawCall
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, rawCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: args,
			})
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	return text.String(), calls
}
