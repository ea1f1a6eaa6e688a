package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

// rawCall is a tool call as a backend reported it, before normalisation.
// Exactly one of ArgsJSON and Args is populated.
type rawCall struct {
	ID       string
	Name     string
	ArgsJSON string
	Args     map[string]any
}

// ArgumentValidator checks tool arguments against the declared schemas.
type ArgumentValidator struct {
	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

func NewArgumentValidator() *ArgumentValidator {
	return &ArgumentValidator{schemas: map[string]*gojsonschema.Schema{}}
}

func (v *ArgumentValidator) Validate(spec contractx.ToolSpec, args map[string]any) error {
	if spec.Parameters == nil {
		return nil
	}
	compiled, err := v.compiled(spec)
	if err != nil {
		return err
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate args for tool=%s: %w", spec.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("args for tool=%s: %s", spec.Name, strings.Join(msgs, "; "))
	}
	return nil
}

func (v *ArgumentValidator) compiled(spec contractx.ToolSpec) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[spec.Name]; ok {
		return s, nil
	}
	doc, err := schemaDocument(spec.Parameters)
	if err != nil {
		return nil, err
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool=%s: %w", spec.Name, err)
	}
	v.schemas[spec.Name] = s
	return s, nil
}

// normalize turns backend output into a Completion, rejecting calls that
// break the tool contract.
func normalize(text string, calls []rawCall, tools []contractx.ToolSpec, validator *ArgumentValidator) (contractx.Completion, error) {
	declared := make(map[string]contractx.ToolSpec, len(tools))
	for _, t := range tools {
		declared[t.Name] = t
	}

	out := contractx.Completion{Text: strings.TrimSpace(text)}
	for _, call := range calls {
		name := strings.TrimSpace(call.Name)
		if name == "" {
			return contractx.Completion{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrProviderContractViolation)
		}
		spec, ok := declared[name]
		if !ok {
			return contractx.Completion{}, fmt.Errorf("%w: undeclared tool=%s", contractx.ErrProviderContractViolation, name)
		}

		args := call.Args
		if args == nil {
			args = map[string]any{}
			if raw := strings.TrimSpace(call.ArgsJSON); raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return contractx.Completion{}, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrProviderContractViolation, name, err)
				}
			}
		}
		if validator != nil {
			if err := validator.Validate(spec, args); err != nil {
				return contractx.Completion{}, fmt.Errorf("%w: %v", contractx.ErrProviderContractViolation, err)
			}
		}

		id := strings.TrimSpace(call.ID)
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		out.ToolCalls = append(out.ToolCalls, contractx.ToolCall{ID: id, Name: name, Args: args})
	}

	if out.Text == "" && len(out.ToolCalls) == 0 {
		return contractx.Completion{}, fmt.Errorf("%w: empty completion", contractx.ErrProviderContractViolation)
	}
	return out, nil
}

// unavailable maps a failed backend round trip onto ErrProviderUnavailable.
// The cause stays reachable through errors.Is.
func unavailable(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contractx.ErrProviderUnavailable) || errors.Is(err, contractx.ErrProviderContractViolation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", contractx.ErrProviderUnavailable, backend, err)
}
