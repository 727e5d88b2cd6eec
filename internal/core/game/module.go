package game

import (
	"maps"
	"os"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/tabletop/internal/core/piece"
)

// ErrInvalidModule is returned for module files that cannot be loaded.
var ErrInvalidModule = errors.New("invalid module")

// Module is a game definition: named prototypes pieces can embed, and the
// pieces every new game starts with.
//
//	name: skirmish
//	prototypes:
//	  unit: "mark;side;red"
//	setup:
//	  - id: board
//	    type: "mat;Board;\tpiece;;;board.png;Board"
//	  - id: scout
//	    type: "prototype;unit\tpiece;;;scout.png;Scout"
type Module struct {
	Name       string            `yaml:"name"`
	Prototypes map[string]string `yaml:"prototypes"`
	Entries    []Entry           `yaml:"setup"`
}

// LoadModule reads a module definition from a YAML file.
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read module")
	}
	m, err := ParseModule(data)
	if err != nil {
		return nil, errors.Wrapf(err, "module %s", path)
	}
	return m, nil
}

// ParseModule decodes and validates a YAML module definition.
func ParseModule(data []byte) (*Module, error) {
	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decode module")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate rejects unnamed prototypes and entries without a unique id.
func (m *Module) Validate() error {
	for name := range m.Prototypes {
		if name == "" {
			return errors.Wrap(ErrInvalidModule, "prototype without a name")
		}
	}
	seen := make(map[string]struct{}, len(m.Entries))
	for i, e := range m.Entries {
		if e.ID == "" {
			return errors.Wrapf(ErrInvalidModule, "setup entry %d has no id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return errors.Wrapf(ErrInvalidModule, "setup entry %q listed twice", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// Apply defines every prototype of the module in c, in name order.
func (m *Module) Apply(c *piece.Catalog) {
	for _, name := range slices.Sorted(maps.Keys(m.Prototypes)) {
		c.DefinePrototype(name, m.Prototypes[name])
	}
}

// Setup returns a copy of the predefined setup.
func (m *Module) Setup() []Entry {
	return slices.Clone(m.Entries)
}
