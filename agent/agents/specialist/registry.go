package specialist

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Retail-Assistant/agent/prompt"
)

//go:embed agents.toml
var agentsTOML []byte

// Entry declares one specialist agent. Agents hold no state of their own.
type Entry struct {
	Name        contractx.AgentName `toml:"name"`
	DisplayName string              `toml:"display_name"`
	Intents     []contractx.Intent  `toml:"intents"`
	Prompt      string              `toml:"prompt"`
	Tools       []string            `toml:"tools"`
	Temperature float32             `toml:"temperature"`
}

// ToolCatalog reports which tool names exist.
type ToolCatalog interface {
	Has(name string) bool
}

type Registry struct {
	entries  []Entry
	byName   map[contractx.AgentName]Entry
	byIntent map[contractx.Intent]contractx.AgentName
}

type registryFile struct {
	Agents []Entry `toml:"agent"`
}

// Decode parses agent entries from TOML.
func Decode(data []byte) ([]Entry, error) {
	var f registryFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("%w: decode agent registry: %v", contractx.ErrValidation, err)
	}
	return f.Agents, nil
}

// LoadRegistry builds the registry from the embedded agent declarations.
func LoadRegistry(tools ToolCatalog) (*Registry, error) {
	entries, err := Decode(agentsTOML)
	if err != nil {
		return nil, err
	}
	return NewRegistry(entries, tools)
}

// NewRegistry validates entries: names are unique, every intent is served by
// exactly one entry, every persona template exists and every tool is known.
func NewRegistry(entries []Entry, tools ToolCatalog) (*Registry, error) {
	if tools == nil {
		return nil, fmt.Errorf("%w: tool catalog is required", contractx.ErrValidation)
	}

	r := &Registry{
		byName:   make(map[contractx.AgentName]Entry, len(entries)),
		byIntent: make(map[contractx.Intent]contractx.AgentName, len(contractx.Intents)),
	}
	for _, e := range entries {
		e.Name = contractx.AgentName(strings.TrimSpace(string(e.Name)))
		if e.Name == "" {
			return nil, fmt.Errorf("%w: agent name is required", contractx.ErrValidation)
		}
		if e.Name == contractx.AgentOrchestrator {
			return nil, fmt.Errorf("%w: agent name %q is reserved", contractx.ErrValidation, e.Name)
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate agent %q", contractx.ErrValidation, e.Name)
		}
		if e.DisplayName == "" {
			e.DisplayName = string(e.Name)
		}
		if _, err := promptx.Raw(e.Prompt); err != nil {
			return nil, fmt.Errorf("agent %q: %w", e.Name, err)
		}
		if len(e.Intents) == 0 {
			return nil, fmt.Errorf("%w: agent %q serves no intent", contractx.ErrValidation, e.Name)
		}
		for _, in := range e.Intents {
			if _, ok := contractx.ParseIntent(string(in)); !ok {
				return nil, fmt.Errorf("%w: agent %q names unknown intent %q", contractx.ErrValidation, e.Name, in)
			}
			if owner, taken := r.byIntent[in]; taken {
				return nil, fmt.Errorf("%w: intent %q served by both %q and %q", contractx.ErrValidation, in, owner, e.Name)
			}
			r.byIntent[in] = e.Name
		}
		for _, name := range e.Tools {
			if !tools.Has(name) {
				return nil, fmt.Errorf("%w: agent %q names unknown tool %q", contractx.ErrValidation, e.Name, name)
			}
		}
		r.byName[e.Name] = e
		r.entries = append(r.entries, e)
	}

	for _, in := range contractx.Intents {
		if _, ok := r.byIntent[in]; !ok {
			return nil, fmt.Errorf("%w: no agent serves intent %q", contractx.ErrValidation, in)
		}
	}
	return r, nil
}

func (r *Registry) Lookup(name contractx.AgentName) (Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

func (r *Registry) ForIntent(in contractx.Intent) (Entry, error) {
	name, ok := r.byIntent[in]
	if !ok {
		return Entry{}, fmt.Errorf("%w: no agent serves intent %q", contractx.ErrValidation, in)
	}
	return r.byName[name], nil
}

// Entries returns the agents in declaration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Allows reports whether agent may call tool.
func (e Entry) Allows(tool string) bool {
	for _, t := range e.Tools {
		if t == tool {
			return true
		}
	}
	return false
}
