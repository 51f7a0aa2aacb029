package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package providers holds the count provider registry and the fetch strategies.

// Strategy names the request mechanism a provider needs.
type Strategy string

const (
	StrategyGet   Strategy = "get"
	StrategyPost  Strategy = "post"
	StrategyJSONP Strategy = "jsonp"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyGet, StrategyPost, StrategyJSONP:
		return true
	}
	return false
}

// Provider describes how to obtain a share count from one counting API.
type Provider struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Strategy    Strategy       `json:"strategy" yaml:"strategy"`
	URLTemplate string         `json:"url_template" yaml:"url_template"`
	Enabled     *bool          `json:"enabled" yaml:"enabled"`
	Config      map[string]any `json:"config" yaml:"config"`

	Body    BodyBuilder `json:"-" yaml:"-"`
	Extract Extractor   `json:"-" yaml:"-"`
}

// EnabledValue returns the enabled flag defaulting to true.
func (p Provider) EnabledValue() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// Registry maps source identifiers to provider descriptors.
type Registry struct {
	mu  sync.RWMutex
	idx map[string]Provider
}

// NewRegistry builds a registry from the given descriptors.
func NewRegistry(providers ...Provider) (*Registry, error) {
	idx := make(map[string]Provider, len(providers))
	for i, p := range providers {
		p = sanitizeProvider(p)
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider[%d]: %w", i, err)
		}
		if _, exists := idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		idx[p.ID] = p
	}
	return &Registry{idx: idx}, nil
}

// Lookup returns the enabled provider registered under id.
func (r *Registry) Lookup(id string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	id = normalizeID(id)
	if id == "" {
		return Provider{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.idx[id]
	if !ok || !p.EnabledValue() {
		return Provider{}, false
	}
	return p, true
}

// IDs returns the sorted identifiers of all enabled providers.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids
}

// All returns the enabled providers ordered by id.
func (r *Registry) All() []Provider {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.idx))
	for _, p := range r.idx {
		if p.EnabledValue() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type overridesFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// LoadOverrides applies endpoint, header and enablement overrides from a
// YAML/JSON file. Only registered providers can be overridden and their
// strategy and extraction logic never change. An empty path is a no-op.
func (r *Registry) LoadOverrides(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read providers file: %w", err)
	}

	overrides, err := parseOverrides(raw, filepath.Ext(path))
	if err != nil {
		return err
	}
	return r.ApplyOverrides(overrides.Providers...)
}

// ApplyOverrides merges the given entries into the registry atomically.
func (r *Registry) ApplyOverrides(entries ...Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Provider, len(r.idx))
	for id, p := range r.idx {
		next[id] = p
	}

	for i, entry := range entries {
		id := normalizeID(entry.ID)
		if id == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		base, ok := next[id]
		if !ok {
			return fmt.Errorf("providers[%d]: unknown provider %q", i, id)
		}
		if entry.Strategy != "" && Strategy(strings.ToLower(string(entry.Strategy))) != base.Strategy {
			return fmt.Errorf("providers[%d]: strategy of %q cannot be changed", i, id)
		}

		merged := base
		if name := strings.TrimSpace(entry.Name); name != "" {
			merged.Name = name
		}
		if tpl := strings.TrimSpace(entry.URLTemplate); tpl != "" {
			merged.URLTemplate = tpl
		}
		if entry.Enabled != nil {
			enabled := *entry.Enabled
			merged.Enabled = &enabled
		}
		if len(entry.Config) > 0 {
			cfg := make(map[string]any, len(base.Config)+len(entry.Config))
			for k, v := range base.Config {
				cfg[k] = v
			}
			for k, v := range entry.Config {
				cfg[k] = v
			}
			merged.Config = cfg
		}

		if err := validateProvider(merged); err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
		next[id] = merged
	}

	r.idx = next
	return nil
}

func parseOverrides(data []byte, ext string) (overridesFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalOverrides(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return overridesFile{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalOverrides(name string, data []byte, fn unmarshalFn) (overridesFile, error) {
	var reg overridesFile
	if err := fn(data, &reg); err != nil {
		return overridesFile{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func sanitizeProvider(p Provider) Provider {
	p.ID = normalizeID(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Strategy = Strategy(strings.ToLower(strings.TrimSpace(string(p.Strategy))))
	p.URLTemplate = strings.TrimSpace(p.URLTemplate)

	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Config == nil {
		p.Config = map[string]any{}
	}

	return p
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if strings.Contains(p.ID, ",") {
		return fmt.Errorf("id %q must not contain a comma", p.ID)
	}
	if !p.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q for provider %q", p.Strategy, p.ID)
	}
	if p.URLTemplate == "" {
		return fmt.Errorf("url_template is required for provider %q", p.ID)
	}
	if p.Extract == nil {
		return fmt.Errorf("extractor is required for provider %q", p.ID)
	}
	if p.Strategy == StrategyPost && p.Body == nil {
		return fmt.Errorf("post provider %q requires a body builder", p.ID)
	}
	if p.Strategy == StrategyJSONP && !strings.Contains(p.URLTemplate, callbackPlaceholder) {
		return fmt.Errorf("jsonp provider %q url_template must contain %q", p.ID, callbackPlaceholder)
	}
	return nil
}
