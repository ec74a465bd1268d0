// Package skills loads the registry of schema-gated LLM skills.
//
// A skill pairs a prompt template with an input schema (checked before the
// model is called) and an output schema (checked on the model's answer).
package skills

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/magnetic-studio/studio-console/pkg/jsonschema"
	"github.com/magnetic-studio/studio-console/pkg/llm"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Skill is one registry entry.
type Skill struct {
	Name           string             `yaml:"name" json:"name"`
	Description    string             `yaml:"description" json:"description,omitempty"`
	Model          string             `yaml:"model" json:"model,omitempty"`
	SystemPrompt   string             `yaml:"system_prompt" json:"-"`
	PromptTemplate string             `yaml:"prompt_template" json:"-"`
	InputSchema    *jsonschema.Schema `yaml:"input_schema" json:"input_schema"`
	OutputSchema   *jsonschema.Schema `yaml:"output_schema" json:"output_schema"`

	tmpl *template.Template
}

// Render builds the prompt for input. The template sees the decoded input as
// .Input and the raw JSON as .InputJSON.
func (s *Skill) Render(input any) (llm.Prompt, error) {
	raw, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("failed to encode input: %w", err)
	}

	var buf bytes.Buffer
	data := map[string]any{"Input": input, "InputJSON": string(raw)}
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return llm.Prompt{}, fmt.Errorf("failed to render skill %s: %w", s.Name, err)
	}

	return llm.Prompt{
		System: strings.TrimSpace(s.SystemPrompt),
		User:   strings.TrimSpace(buf.String()),
		Model:  s.Model,
	}, nil
}

// Registry is an immutable set of skills keyed by name.
type Registry struct {
	skills map[string]*Skill
}

type registryFile struct {
	Skills []*Skill `yaml:"skills"`
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skills file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse skills: %w", err)
	}

	reg := &Registry{skills: make(map[string]*Skill, len(file.Skills))}
	for i, s := range file.Skills {
		if s == nil || !namePattern.MatchString(s.Name) {
			return nil, fmt.Errorf("skill %d: name must match %s", i, namePattern)
		}
		if _, dup := reg.skills[s.Name]; dup {
			return nil, fmt.Errorf("skill %s: defined more than once", s.Name)
		}
		if s.PromptTemplate == "" {
			return nil, fmt.Errorf("skill %s: prompt_template is required", s.Name)
		}
		if s.OutputSchema == nil {
			return nil, fmt.Errorf("skill %s: output_schema is required", s.Name)
		}

		tmpl, err := template.New(s.Name).Option("missingkey=zero").Parse(s.PromptTemplate)
		if err != nil {
			return nil, fmt.Errorf("skill %s: invalid prompt_template: %w", s.Name, err)
		}
		s.tmpl = tmpl
		reg.skills[s.Name] = s
	}
	return reg, nil
}

// Get returns the named skill.
func (r *Registry) Get(name string) (*Skill, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.skills[name]
	return s, ok
}

// List returns all skills sorted by name.
func (r *Registry) List() []*Skill {
	if r == nil {
		return nil
	}
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
