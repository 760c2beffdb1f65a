package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only set of programs shared by all sessions. It is
// built once at startup and injected into each component call; nothing in
// the engine mutates it.
type Catalog struct {
	programs []Program
	position map[string]int // program id -> insertion order
}

// New builds a catalog from an ordered program list. Insertion order is
// preserved because it is the final ranking tie-breaker.
func New(programs []Program) (*Catalog, error) {
	position := make(map[string]int, len(programs))
	for i, p := range programs {
		if p.ID == "" {
			return nil, fmt.Errorf("program at index %d has no id", i)
		}
		if _, dup := position[p.ID]; dup {
			return nil, fmt.Errorf("duplicate program id %q", p.ID)
		}
		position[p.ID] = i
	}
	return &Catalog{programs: programs, position: position}, nil
}

// catalogFile is the on-disk YAML shape.
type catalogFile struct {
	Version  string    `yaml:"version"`
	Programs []Program `yaml:"programs"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Programs) == 0 {
		return nil, fmt.Errorf("catalog %s contains no programs", path)
	}

	return New(file.Programs)
}

// Programs returns all programs in insertion order.
func (c *Catalog) Programs() []Program {
	return c.programs
}

// Len returns the number of programs.
func (c *Catalog) Len() int {
	return len(c.programs)
}

// ByID looks up a program by identifier.
func (c *Catalog) ByID(id string) (Program, bool) {
	i, ok := c.position[id]
	if !ok {
		return Program{}, false
	}
	return c.programs[i], true
}

// Position returns the insertion index of a program id, or -1 if unknown.
func (c *Catalog) Position(id string) int {
	i, ok := c.position[id]
	if !ok {
		return -1
	}
	return i
}

// AttributeFrequency counts, per attribute, how many programs constrain it.
// A broadly constrained attribute discriminates more of the catalog, which
// is the clarification tie-breaker.
func (c *Catalog) AttributeFrequency() map[string]int {
	freq := make(map[string]int)
	for _, p := range c.programs {
		seen := make(map[string]bool)
		for _, constraint := range p.Predicate {
			if !seen[constraint.Attribute] {
				seen[constraint.Attribute] = true
				freq[constraint.Attribute]++
			}
		}
	}
	return freq
}

// AttributesByFrequency returns constrained attributes ordered by how many
// programs reference them, most frequent first. Ties are ordered
// alphabetically so the result is deterministic.
func (c *Catalog) AttributesByFrequency() []string {
	freq := c.AttributeFrequency()
	attrs := make([]string, 0, len(freq))
	for attr := range freq {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		if freq[attrs[i]] != freq[attrs[j]] {
			return freq[attrs[i]] > freq[attrs[j]]
		}
		return attrs[i] < attrs[j]
	})
	return attrs
}
