package specialist

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

// compileStructuredGraph wires prompt -> provider -> JSON parser. The
// provider stands in for a chat model node so any backend can serve it.
func compileStructuredGraph[T any](
	ctx context.Context,
	provider contractx.Provider,
	systemPrompt string,
	userTemplate string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userTemplate),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddLambdaNode("complete", compose.InvokableLambda(
		func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
			return complete(ctx, provider, msgs)
		}),
	); err != nil {
		return nil, fmt.Errorf("add structured complete node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "complete"},
		{"complete", "parse_json"},
		{"parse_json", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add structured edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

func complete(ctx context.Context, provider contractx.Provider, msgs []*schema.Message) (*schema.Message, error) {
	var req contractx.CompletionRequest
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			req.SystemPrompt = strings.TrimSpace(req.SystemPrompt + "\n\n" + m.Content)
		case schema.Assistant:
			req.Window = append(req.Window, contractx.Message{Role: contractx.RoleAssistant, Content: m.Content})
		default:
			req.Window = append(req.Window, contractx.Message{Role: contractx.RoleUser, Content: m.Content})
		}
	}

	out, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(out.ToolCalls) > 0 {
		return nil, fmt.Errorf("%w: structured reply must not call tools", contractx.ErrProviderContractViolation)
	}
	return schema.AssistantMessage(stripFence(out.Text), nil), nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
