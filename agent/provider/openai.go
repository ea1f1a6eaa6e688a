package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

type chatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI talks to the chat completions API directly through openai-go.
type OpenAI struct {
	completions chatCompletions
	model       string
	temperature float64
	maxTokens   int64
	validator   *ArgumentValidator
}

var _ contractx.Provider = (*OpenAI)(nil)

func NewOpenAI(client *openai.Client, model string, temperature float32, maxTokens int) (*OpenAI, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai model is required")
	}
	return &OpenAI{
		completions: &client.Chat.Completions,
		model:       strings.TrimSpace(model),
		temperature: float64(temperature),
		maxTokens:   int64(maxTokens),
		validator:   NewArgumentValidator(),
	}, nil
}

func (p *OpenAI) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    openAIMessages(req),
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(p.maxTokens)
	}
	for _, t := range req.Tools {
		doc, err := schemaDocument(t.Parameters)
		if err != nil {
			return contractx.Completion{}, err
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(doc),
			},
		})
	}

	resp, err := p.completions.New(ctx, params)
	if err != nil {
		return contractx.Completion{}, unavailable("openai", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return contractx.Completion{}, errors.Join(contractx.ErrProviderContractViolation, errors.New("no choices in response"))
	}

	choice := resp.Choices[0].Message
	calls := make([]rawCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		calls = append(calls, rawCall{
			ID:       tc.ID,
			Name:     tc.Function.Name,
			ArgsJSON: tc.Function.Arguments,
		})
	}
	return normalize(choice.Content, calls, req.Tools, p.validator)
}

func openAIMessages(req contractx.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Window)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Window {
		switch m.Role {
		case contractx.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case contractx.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: encodeArgs(tc.Args),
					},
				})
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case contractx.RoleTool:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return msgs
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
