package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of unit-of-work operations over named entities.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE file declaring the entities.
	// Relative paths are resolved against the scenario file location.
	Schema string `yaml:"schema"`

	// Token prefixes run tokens. Defaults to DefaultToken.
	Token string `yaml:"token,omitempty"`

	// Entities declares the records the steps operate on, by name.
	Entities map[string]EntityDecl `yaml:"entities"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the journal and final tables.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DefaultToken prefixes run tokens when a scenario names none.
const DefaultToken = "run"

// EntityDecl declares one record.
type EntityDecl struct {
	Role string `yaml:"role"`

	// Fields are column values.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Relations map relation names to entity names: a string, a list of
	// strings, or null.
	Relations map[string]any `yaml:"relations,omitempty"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	Store   string   `yaml:"store,omitempty"`
	Delete  string   `yaml:"delete,omitempty"`
	Set     *SetStep `yaml:"set,omitempty"`
	Execute bool     `yaml:"execute,omitempty"`
}

// SetStep changes an entity without queueing it.
type SetStep struct {
	Entity    string         `yaml:"entity"`
	Fields    map[string]any `yaml:"fields,omitempty"`
	Relations map[string]any `yaml:"relations,omitempty"`
}

// Op names the step kind.
func (s Step) Op() string {
	switch {
	case s.Store != "":
		return OpStore
	case s.Delete != "":
		return OpDelete
	case s.Set != nil:
		return OpSet
	case s.Execute:
		return OpExecute
	default:
		return ""
	}
}

// Step kinds.
const (
	OpStore   = "store"
	OpDelete  = "delete"
	OpSet     = "set"
	OpExecute = "execute"
)

// Assertion validates the journal or final tables.
type Assertion struct {
	// Type is one of write_order, write_count, final_state, row_count.
	Type string `yaml:"type"`

	// Writes is the expected "op table" sequence (write_order).
	Writes []string `yaml:"writes,omitempty"`

	// Op is the write kind (write_count).
	Op string `yaml:"op,omitempty"`

	// Table names the table (write_count, final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where selects the row (final_state). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (write_count, row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertWriteOrder = "write_order"
	AssertWriteCount = "write_count"
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving the schema
// path against the file's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative schema path
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}
	if scenario.Token == "" {
		scenario.Token = DefaultToken
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and every
// entity reference resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, name := range sortedNames(s.Entities) {
		decl := s.Entities[name]
		if decl.Role == "" {
			return fmt.Errorf("entities.%s: role is required", name)
		}
		if err := checkRefs(s, "entities."+name, decl.Relations); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, i int, step Step) error {
	set := 0
	if step.Store != "" {
		set++
	}
	if step.Delete != "" {
		set++
	}
	if step.Set != nil {
		set++
	}
	if step.Execute {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of store, delete, set, execute is required", i)
	}

	var name string
	switch step.Op() {
	case OpStore:
		name = step.Store
	case OpDelete:
		name = step.Delete
	case OpSet:
		name = step.Set.Entity
		if name == "" {
			return fmt.Errorf("steps[%d].set: entity is required", i)
		}
		if err := checkRefs(s, fmt.Sprintf("steps[%d].set", i), step.Set.Relations); err != nil {
			return err
		}
	default:
		return nil
	}
	if _, ok := s.Entities[name]; !ok {
		return fmt.Errorf("steps[%d]: unknown entity %q", i, name)
	}
	return nil
}

// checkRefs verifies that relation values name declared entities.
func checkRefs(s *Scenario, owner string, relations map[string]any) error {
	for _, rel := range sortedNames(relations) {
		names, err := refNames(relations[rel])
		if err != nil {
			return fmt.Errorf("%s.relations.%s: %w", owner, rel, err)
		}
		for _, n := range names {
			if _, ok := s.Entities[n]; !ok {
				return fmt.Errorf("%s.relations.%s: unknown entity %q", owner, rel, n)
			}
		}
	}
	return nil
}

// refNames lists the entity names of a relation value.
func refNames(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d must be an entity name, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be an entity name or list of names, got %T", v)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertWriteOrder:
		if len(a.Writes) == 0 {
			return fmt.Errorf("assertions[%d]: writes list is required for write_order", index)
		}
	case AssertWriteCount:
		if a.Op == "" || a.Table == "" {
			return fmt.Errorf("assertions[%d]: op and table are required for write_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for write_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
