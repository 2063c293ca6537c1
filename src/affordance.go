package src

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
)

// AffordanceDesc describes one UI element the god-mode planner may target.
type AffordanceDesc struct {
	Selector    string
	Description string
}

// AffordanceRegistry is the surface god mode drives: the live UI elements
// of the application being operated.
type AffordanceRegistry interface {
	List(ctx context.Context) ([]AffordanceDesc, error)
	Resolve(ctx context.Context, selector string) (AffordanceDesc, bool, error)
	Click(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, option string) error
}

// BuildUTCP initializes a UTCP client from the conventional provider.json
// location under the user's home directory.
func BuildUTCP(ctx context.Context, providerPath string) (utcp.UtcpClientInterface, error) {
	if providerPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		providerPath = filepath.Join(home, "utcp", "provider.json")
	}
	if _, err := os.Stat(providerPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("UTCP unavailable: providers file missing at %s", providerPath)
	}

	cfg := &utcp.UtcpClientConfig{
		ProvidersFilePath: providerPath,
	}
	client, err := utcp.NewUTCPClient(ctx, cfg, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("UTCP unavailable: %w", err)
	}
	return client, nil
}

// UTCPRegistry drives the target application's UI through UTCP tools.
// The provider is expected to expose ui.list, ui.click, ui.set_value and
// ui.select_option.
type UTCPRegistry struct {
	Client utcp.UtcpClientInterface
}

func (r *UTCPRegistry) List(ctx context.Context) ([]AffordanceDesc, error) {
	res, err := r.Client.CallTool(ctx, "ui.list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("ui.list: %w", err)
	}
	items, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("ui.list: unexpected result %T", res)
	}
	var out []AffordanceDesc
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		sel, _ := m["selector"].(string)
		desc, _ := m["description"].(string)
		if sel != "" {
			out = append(out, AffordanceDesc{Selector: sel, Description: desc})
		}
	}
	return out, nil
}

func (r *UTCPRegistry) Resolve(ctx context.Context, selector string) (AffordanceDesc, bool, error) {
	items, err := r.List(ctx)
	if err != nil {
		return AffordanceDesc{}, false, err
	}
	for _, it := range items {
		if it.Selector == selector {
			return it, true, nil
		}
	}
	return AffordanceDesc{}, false, nil
}

func (r *UTCPRegistry) Click(ctx context.Context, selector string) error {
	_, err := r.Client.CallTool(ctx, "ui.click", map[string]any{"selector": selector})
	if err != nil {
		return fmt.Errorf("ui.click %s: %w", selector, err)
	}
	return nil
}

func (r *UTCPRegistry) SetValue(ctx context.Context, selector, value string) error {
	_, err := r.Client.CallTool(ctx, "ui.set_value", map[string]any{
		"selector": selector,
		"value":    value,
	})
	if err != nil {
		return fmt.Errorf("ui.set_value %s: %w", selector, err)
	}
	return nil
}

func (r *UTCPRegistry) SelectOption(ctx context.Context, selector, option string) error {
	_, err := r.Client.CallTool(ctx, "ui.select_option", map[string]any{
		"selector": selector,
		"option":   option,
	})
	if err != nil {
		return fmt.Errorf("ui.select_option %s: %w", selector, err)
	}
	return nil
}

// ScriptedRegistry is an in-memory registry. Tests and the TUI's dry-run
// mode use it; every interaction is recorded in order.
type ScriptedRegistry struct {
	mu       sync.Mutex
	elements map[string]string // selector -> description
	values   map[string]string
	Calls    []string
	FailOn   string // selector whose interaction fails
}

func NewScriptedRegistry(elements map[string]string) *ScriptedRegistry {
	return &ScriptedRegistry{
		elements: elements,
		values:   map[string]string{},
	}
}

func (r *ScriptedRegistry) List(ctx context.Context) ([]AffordanceDesc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AffordanceDesc
	for sel, desc := range r.elements {
		out = append(out, AffordanceDesc{Selector: sel, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Selector < out[j].Selector })
	return out, nil
}

func (r *ScriptedRegistry) Resolve(ctx context.Context, selector string) (AffordanceDesc, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.elements[selector]
	if !ok {
		return AffordanceDesc{}, false, nil
	}
	return AffordanceDesc{Selector: selector, Description: desc}, true, nil
}

func (r *ScriptedRegistry) touch(kind, selector, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if selector == r.FailOn && r.FailOn != "" {
		return fmt.Errorf("element %s not interactable", selector)
	}
	if _, ok := r.elements[selector]; !ok {
		return fmt.Errorf("unknown element %s", selector)
	}
	r.Calls = append(r.Calls, kind+" "+selector)
	if payload != "" {
		r.values[selector] = payload
	}
	return nil
}

func (r *ScriptedRegistry) Click(ctx context.Context, selector string) error {
	return r.touch("click", selector, "")
}

func (r *ScriptedRegistry) SetValue(ctx context.Context, selector, value string) error {
	return r.touch("type", selector, value)
}

func (r *ScriptedRegistry) SelectOption(ctx context.Context, selector, option string) error {
	return r.touch("select", selector, option)
}

// Value returns the last value typed or selected into an element.
func (r *ScriptedRegistry) Value(selector string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[selector]
}
