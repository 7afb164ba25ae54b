package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides replaces candidate key lists without a rebuild.
//
//	tables:
//	  debt_item:
//	    total: [valorTotal, valorAtualizado]
//	containers:
//	  debt_list: [debitos, parcelasAbertas]
type Overrides struct {
	Tables     map[string]map[string][]string `yaml:"tables"`
	Containers Containers                     `yaml:"containers"`
}

// LoadOverrides reads an override file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse aliases file: %w", err)
	}
	return &o, nil
}

// Apply returns copies of tables and containers with the overrides applied.
// Unknown tables or fields are rejected so typos surface at startup.
func (o *Overrides) Apply(tables Tables, containers Containers) (Tables, Containers, error) {
	out := tables.Clone()
	for name, fields := range o.Tables {
		t, ok := out[name]
		if !ok {
			return nil, Containers{}, fmt.Errorf("unknown alias table %q", name)
		}
		for field, keys := range fields {
			if len(keys) == 0 {
				return nil, Containers{}, fmt.Errorf("table %s field %s: empty key list", name, field)
			}
			if err := t.setKeys(field, keys); err != nil {
				return nil, Containers{}, err
			}
		}
		out[name] = t
	}

	c := containers
	if len(o.Containers.PropertyList) > 0 {
		c.PropertyList = o.Containers.PropertyList
	}
	if len(o.Containers.DebtProperties) > 0 {
		c.DebtProperties = o.Containers.DebtProperties
	}
	if len(o.Containers.DebtList) > 0 {
		c.DebtList = o.Containers.DebtList
	}
	if len(o.Containers.InstallmentList) > 0 {
		c.InstallmentList = o.Containers.InstallmentList
	}
	if len(o.Containers.Nested) > 0 {
		c.Nested = o.Containers.Nested
	}
	return out, c, nil
}
