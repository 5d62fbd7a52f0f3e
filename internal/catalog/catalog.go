// Package catalog provides the static field catalog for the medical-intake
// dialogue.
//
// A catalog maps field identifiers to display metadata (Chinese display
// name, description, example answers, importance tier). Catalogs are loaded
// once at process start from an embedded JSON document, optionally
// overridden by a file on disk, and are read-only thereafter. They are safe
// for unsynchronized concurrent reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "embed"

	"github.com/medpipe/medpipe/internal/models"
)

// Catalog names as they appear in the mapping document.
const (
	BaseInfoMapping  = "base_info_mapping"
	SymptomMapping   = "symptom_mapping"
	LifestyleMapping = "lifestyle_mapping"
	CombinedMapping  = "combined_info_mapping"
)

//go:embed mappings.json
var embeddedMappings []byte

// Importance is the priority tier of a collectible field.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// rank orders tiers high before medium before low. Unknown tiers sort last.
func (i Importance) rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	case ImportanceLow:
		return 2
	default:
		return 3
	}
}

// Field is an immutable descriptor of one collectible field.
type Field struct {
	ID          string     `json:"field_id"`
	ZhName      string     `json:"zh_name"`
	Description string     `json:"description"`
	Examples    []string   `json:"examples"`
	Importance  Importance `json:"importance"`
}

// Catalog is an ordered, read-only collection of fields.
type Catalog struct {
	name   string
	fields []Field
	index  map[string]int
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Fields returns the fields in declaration order.
func (c *Catalog) Fields() []Field { return c.fields }

// Len returns the number of fields.
func (c *Catalog) Len() int { return len(c.fields) }

// Get returns the field with the given identifier.
func (c *Catalog) Get(id string) (Field, bool) {
	i, ok := c.index[id]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Has reports whether the catalog declares the given field identifier.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// ByImportance returns the fields of the given tier in declaration order.
func (c *Catalog) ByImportance(tier Importance) []Field {
	var out []Field
	for _, f := range c.fields {
		if f.Importance == tier {
			out = append(out, f)
		}
	}
	return out
}

// Unfilled returns fields with no collected answer, ordered by importance
// tier (high before medium before low) and by declaration order within a
// tier. Declaration order is the deterministic tie-break.
func (c *Catalog) Unfilled(info map[string]string) []Field {
	var out []Field
	for _, tier := range []Importance{ImportanceHigh, ImportanceMedium, ImportanceLow} {
		for _, f := range c.fields {
			if f.Importance != tier {
				continue
			}
			if _, ok := info[f.ID]; !ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// Complete reports whether every field of the catalog has a collected answer.
func (c *Catalog) Complete(info map[string]string) bool {
	for _, f := range c.fields {
		if _, ok := info[f.ID]; !ok {
			return false
		}
	}
	return true
}

// HighComplete reports whether every high-importance field has an answer.
func (c *Catalog) HighComplete(info map[string]string) bool {
	for _, f := range c.ByImportance(ImportanceHigh) {
		if _, ok := info[f.ID]; !ok {
			return false
		}
	}
	return true
}

// DescribeFields formats the catalog's field descriptions for inclusion in
// a generation prompt.
func (c *Catalog) DescribeFields() string {
	var b strings.Builder
	for _, f := range c.fields {
		fmt.Fprintf(&b, "- %s(%s): %s，例如：%s\n", f.ID, f.ZhName, f.Description, strings.Join(f.Examples, "、"))
	}
	return b.String()
}

// Set holds all loaded catalogs, keyed by catalog name.
type Set struct {
	catalogs map[string]*Catalog
}

// Load parses the embedded mapping document into a catalog set.
func Load() (*Set, error) {
	return parse(embeddedMappings)
}

// LoadFile parses a mapping document from disk, overriding the embedded one.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("catalog.LoadFile: failed to read mapping file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read field mapping file %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Set, error) {
	var raw map[string][]Field
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field mappings: %w", err)
	}
	set := &Set{catalogs: make(map[string]*Catalog, len(raw))}
	for name, fields := range raw {
		cat := &Catalog{name: name, fields: fields, index: make(map[string]int, len(fields))}
		for i, f := range fields {
			if f.ID == "" {
				return nil, fmt.Errorf("catalog %s: field %d has empty field_id", name, i)
			}
			if _, dup := cat.index[f.ID]; dup {
				return nil, fmt.Errorf("catalog %s: duplicate field_id %s", name, f.ID)
			}
			cat.index[f.ID] = i
		}
		set.catalogs[name] = cat
	}
	for _, required := range []string{BaseInfoMapping, SymptomMapping, LifestyleMapping, CombinedMapping} {
		if _, ok := set.catalogs[required]; !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrCatalogNotFound, required)
		}
	}
	slog.Debug("catalog.parse: field catalogs loaded", "count", len(set.catalogs))
	return set, nil
}

// Catalog returns the catalog with the given name.
func (s *Set) Catalog(name string) (*Catalog, error) {
	c, ok := s.catalogs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCatalogNotFound, name)
	}
	return c, nil
}

// BaseInfo returns the base information catalog.
func (s *Set) BaseInfo() *Catalog { return s.catalogs[BaseInfoMapping] }

// Symptom returns the symptom catalog.
func (s *Set) Symptom() *Catalog { return s.catalogs[SymptomMapping] }

// Lifestyle returns the lifestyle catalog.
func (s *Set) Lifestyle() *Catalog { return s.catalogs[LifestyleMapping] }

// Combined returns the combined base+symptom catalog.
func (s *Set) Combined() *Catalog { return s.catalogs[CombinedMapping] }

// displayName resolves a field identifier to its Chinese display name,
// searching the combined catalog first and falling back to lifestyle.
func (s *Set) displayName(id string) string {
	if f, ok := s.Combined().Get(id); ok {
		return f.ZhName
	}
	if f, ok := s.Lifestyle().Get(id); ok {
		return f.ZhName
	}
	return id
}

// infoSections fixes the grouping and ordering of the formatted summary.
var infoSections = []struct {
	title string
	keys  []string
}{
	{"基本信息", []string{"age", "gender"}},
	{"病史信息", []string{"medical_history", "allergy", "medication"}},
	{"症状信息", []string{"main", "duration", "severity", "pattern", "factors", "associated"}},
	{"生活习惯", []string{"sleep", "diet", "exercise", "work", "smoke_drink"}},
}

// FormatMedicalInfo renders collected answers as a human-readable block,
// grouped into fixed sections and labeled with catalog display names.
// Fields with no collected answer are omitted; empty sections are skipped.
func (s *Set) FormatMedicalInfo(info map[string]string) string {
	var sections []string
	for _, sec := range infoSections {
		var lines []string
		for _, key := range sec.keys {
			if value, ok := info[key]; ok {
				lines = append(lines, fmt.Sprintf("%s: %s", s.displayName(key), value))
			}
		}
		if len(lines) > 0 {
			sections = append(sections, sec.title+":\n"+strings.Join(lines, "\n"))
		}
	}
	return strings.Join(sections, "\n\n")
}
