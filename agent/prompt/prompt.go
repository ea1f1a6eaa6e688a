package prompt

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

//go:embed template/*.txt
var templates embed.FS

// Router is the key of the intent classification prompt.
const Router = "router"

// Vars are the context fields a persona template may reference.
type Vars struct {
	CustomerID     string
	CartSummary    string
	PageContext    string
	ProfileSummary string
}

func (v Vars) values() map[string]any {
	return map[string]any{
		"customer_id":     orNone(v.CustomerID, "guest"),
		"cart_summary":    orNone(v.CartSummary, "empty"),
		"page_context":    orNone(v.PageContext, "none"),
		"profile_summary": orNone(v.ProfileSummary, "none"),
	}
}

func orNone(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// Raw returns the unrendered template text for key.
func Raw(key string) (string, error) {
	b, err := templates.ReadFile("template/" + key + ".txt")
	if err != nil {
		return "", fmt.Errorf("%w: template %q", contractx.ErrPromptMissing, key)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("%w: template %q is empty", contractx.ErrPromptMissing, key)
	}
	return text, nil
}

// Render formats the persona template for key with FString substitution.
func Render(ctx context.Context, key string, vars Vars) (string, error) {
	raw, err := Raw(key)
	if err != nil {
		return "", err
	}
	msgs, err := einoprompt.FromMessages(schema.FString, schema.SystemMessage(raw)).Format(ctx, vars.values())
	if err != nil {
		return "", fmt.Errorf("render template %q: %w", key, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%w: template %q rendered nothing", contractx.ErrPromptMissing, key)
	}
	return msgs[0].Content, nil
}

// Keys lists every embedded template key.
func Keys() []string {
	entries, err := fs.ReadDir(templates, "template")
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(keys)
	return keys
}
