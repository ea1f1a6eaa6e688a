// Package tool holds the retail tool catalog agents may call during the tool
// loop. Every tool runs against retrieval or the commerce store.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/provider"
)

// Outcome is what a tool hands back to the gateway.
type Outcome struct {
	Result     any
	NeedsInput bool
	Data       map[string]any
	Directives []contractx.Directive
}

// userError carries a message that is safe to show the model.
type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func inputErrorf(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

func isUserError(err error) (string, bool) {
	var ue userError
	if errors.As(err, &ue) {
		return ue.msg, true
	}
	return "", false
}

type Definition interface {
	Name() string
	Description() string
	RequestSchema() *jsonschema.Schema
	run(ctx context.Context, inv contractx.Invocation, args map[string]any) (Outcome, error)
}

type definition[Req any] struct {
	name        string
	description string
	proc        func(ctx context.Context, inv contractx.Invocation, req Req) (Outcome, error)
}

func define[Req any](name, description string, proc func(context.Context, contractx.Invocation, Req) (Outcome, error)) Definition {
	return &definition[Req]{name: name, description: description, proc: proc}
}

func (d *definition[Req]) Name() string {
	return d.name
}

func (d *definition[Req]) Description() string {
	return d.description
}

func (d *definition[Req]) RequestSchema() *jsonschema.Schema {
	var req Req
	return provider.Reflect(&req)
}

func (d *definition[Req]) run(ctx context.Context, inv contractx.Invocation, args map[string]any) (Outcome, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal %s args: %w", d.name, err)
	}
	var req Req
	if err := json.Unmarshal(raw, &req); err != nil {
		return Outcome{}, inputErrorf("invalid arguments for %s: %v", d.name, err)
	}
	return d.proc(ctx, inv, req)
}
