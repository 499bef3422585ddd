package persona

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

type templatesFile struct {
	Personas []VendorPersona `yaml:"personas"`
}

// DistributionShare is the fraction of a simulated vendor population that
// uses one template.
type DistributionShare struct {
	PersonaID string
	Share     float64
}

// DefaultDistribution spreads a batch 20/30/20/15/15 over the baseline templates.
var DefaultDistribution = []DistributionShare{
	{PersonaID: "firm_fleet_owner", Share: 0.20},
	{PersonaID: "flexible_driver", Share: 0.30},
	{PersonaID: "anchor_high_agency", Share: 0.20},
	{PersonaID: "aggressive_broker", Share: 0.15},
	{PersonaID: "friendly_local", Share: 0.15},
}

// Templates is a read-only set of baseline personas. Accessors return
// copies so callers can never mutate the loaded data.
type Templates struct {
	items []VendorPersona
}

// DefaultTemplates parses the embedded baseline personas.
func DefaultTemplates() (*Templates, error) {
	return parseTemplates(templatesYAML, time.Now())
}

// LoadTemplates reads a YAML override file; an empty path means the
// embedded defaults.
func LoadTemplates(path string) (*Templates, error) {
	if path == "" {
		return DefaultTemplates()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona templates: %w", err)
	}
	return parseTemplates(raw, time.Now())
}

func parseTemplates(raw []byte, loadedAt time.Time) (*Templates, error) {
	var f templatesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse persona templates: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, fmt.Errorf("persona templates: no personas defined")
	}
	seen := map[string]bool{}
	for i := range f.Personas {
		p := &f.Personas[i]
		if p.ID == "" {
			return nil, fmt.Errorf("persona templates: entry %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("persona templates: duplicate id %q", p.ID)
		}
		seen[p.ID] = true
		if !p.NegotiationStyle.Valid() {
			return nil, fmt.Errorf("persona %s: unknown negotiation style %q", p.ID, p.NegotiationStyle)
		}
		if p.PriceFlexibility < 0 || p.PriceFlexibility > 100 {
			return nil, fmt.Errorf("persona %s: price_flexibility out of range", p.ID)
		}
		if p.Confidence == "" {
			p.Confidence = ConfidenceMedium
		}
		p.CreatedAt = loadedAt
	}
	return &Templates{items: f.Personas}, nil
}

// All returns copies of every template in file order.
func (t *Templates) All() []VendorPersona {
	out := make([]VendorPersona, len(t.items))
	for i, p := range t.items {
		out[i] = p.Clone()
	}
	return out
}

// ByID returns a copy of the template with the given id.
func (t *Templates) ByID(id string) (VendorPersona, bool) {
	for _, p := range t.items {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return VendorPersona{}, false
}

// ForStyle returns a copy of the first template with the given style.
func (t *Templates) ForStyle(s NegotiationStyle) (VendorPersona, bool) {
	for _, p := range t.items {
		if p.NegotiationStyle == s {
			return p.Clone(), true
		}
	}
	return VendorPersona{}, false
}

func (t *Templates) Len() int { return len(t.items) }

// WriteTemplates writes personas in the template file format, so a refined
// library can be fed back in through LoadTemplates.
func WriteTemplates(w io.Writer, personas []VendorPersona) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(templatesFile{Personas: personas}); err != nil {
		return fmt.Errorf("encode persona templates: %w", err)
	}
	return enc.Close()
}
