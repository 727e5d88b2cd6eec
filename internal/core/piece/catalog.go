package piece

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zeusync/tabletop/pkg/encoding"
)

// DefaultPrototypeDepth bounds prototype references nested inside prototype
// definitions.
const DefaultPrototypeDepth = 16

// Constructor returns a trait with default configuration.
type Constructor func() Trait

// Catalog maps layer tags to trait constructors and holds the prototype
// definitions pieces may reference. It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	ctors      map[string]Constructor
	leafTag    string
	leaf       Constructor
	prototypes map[string]string
	maxDepth   int
}

// NewCatalog returns an empty catalog with the default prototype depth.
func NewCatalog() *Catalog {
	return &Catalog{
		ctors:      make(map[string]Constructor),
		prototypes: make(map[string]string),
		maxDepth:   DefaultPrototypeDepth,
	}
}

// Register binds tag to ctor, replacing any previous binding.
func (c *Catalog) Register(tag string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctors[tag] = ctor
}

// SetLeaf registers the base leaf trait. Every built piece ends with it.
func (c *Catalog) SetLeaf(tag string, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leafTag = tag
	c.leaf = ctor
	c.ctors[tag] = ctor
}

// SetPrototypeDepth bounds how deeply prototypes may reference each other.
func (c *Catalog) SetPrototypeDepth(depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxDepth = depth
}

// Tags lists the registered tags in sorted order.
func (c *Catalog) Tags() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tags := make([]string, 0, len(c.ctors))
	for tag := range c.ctors {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// DefinePrototype stores a named piece type whose layers are spliced into
// any piece that references the name. The definition's leaf is discarded.
func (c *Catalog) DefinePrototype(name, pieceType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prototypes[name] = pieceType
}

// RemovePrototype forgets a definition. Pieces already built keep their layers.
func (c *Catalog) RemovePrototype(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.prototypes, name)
}

// Prototype returns the type string defined under name.
func (c *Catalog) Prototype(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.prototypes[name]
	return def, ok
}

// Prototypes lists the defined names in sorted order.
func (c *Catalog) Prototypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.prototypes))
	for name := range c.prototypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build decodes pieceType into a new piece. The piece is always returned;
// layers that could not be decoded become Passthrough layers and every
// problem is reported in the returned error as joined faults.
func (c *Catalog) Build(id, pieceType string, env Env) (*Piece, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.leaf == nil {
		return nil, errors.New("catalog has no leaf trait")
	}

	p := &Piece{id: id, env: env}
	head, err := c.buildChain(p, pieceType, 0, true)
	p.outer = head
	return p, stamp(err, id)
}

func (c *Catalog) buildChain(p *Piece, pieceType string, depth int, wantLeaf bool) (*Node, error) {
	var (
		head, tail *Node
		errs       []error
	)
	push := func(t Trait) *Node {
		n := &Node{trait: t, piece: p, outer: tail}
		if tail == nil {
			head = n
		} else {
			tail.inner = n
		}
		tail = n
		return n
	}

	rest := pieceType
	for rest != "" {
		d := encoding.NewSequenceDecoder(rest, layerDelim)
		layer := d.NextTokenOr("")
		rest = d.NextTokenOr("")
		if d.HasMoreTokens() {
			errs = append(errs, newFault(DecodeFault, "", d.Remaining(), ErrTrailingTokens))
		}

		tag, tokens := splitLayer(layer)
		if tag == c.leafTag {
			if rest != "" {
				errs = append(errs, newFault(DecodeFault, tag, rest, ErrTrailingTokens))
			}
			if !wantLeaf {
				return head, errors.Join(errs...)
			}
			leaf := c.leaf()
			if err := leaf.DecodeType(tokens); err != nil {
				errs = append(errs, newFault(DecodeFault, tag, tokens, err))
			}
			push(leaf)
			return head, errors.Join(errs...)
		}

		if tag == PrototypeTag {
			errs = append(errs, c.pushPrototype(p, push, layer, tokens, depth))
			continue
		}

		ctor, ok := c.ctors[tag]
		if !ok {
			errs = append(errs, newFault(UnknownTraitTag, tag, tokens, ErrUnknownTag))
			push(NewPassthrough(layer))
			continue
		}
		t := ctor()
		if err := t.DecodeType(tokens); err != nil {
			errs = append(errs, newFault(DecodeFault, tag, tokens, err))
			push(NewPassthrough(layer))
			continue
		}
		push(t)
	}

	if wantLeaf {
		errs = append(errs, newFault(DecodeFault, "", pieceType, ErrMissingLeaf))
		push(c.leaf())
	}
	return head, errors.Join(errs...)
}

func (c *Catalog) pushPrototype(p *Piece, push func(Trait) *Node, layer, tokens string, depth int) error {
	u := &UsePrototype{}
	if err := u.DecodeType(tokens); err != nil {
		push(NewPassthrough(layer))
		return newFault(DecodeFault, PrototypeTag, tokens, err)
	}
	host := push(u)

	def, ok := c.prototypes[u.name]
	if !ok {
		return newFault(DecodeFault, PrototypeTag, tokens, fmt.Errorf("%w: %q", ErrUnknownPrototype, u.name))
	}
	if depth >= c.maxDepth {
		return newFault(DecodeFault, PrototypeTag, tokens, fmt.Errorf("%w: %q at depth %d", ErrPrototypeDepth, u.name, depth))
	}

	sub, err := c.buildChain(p, def, depth+1, false)
	if sub != nil {
		sub.outer = host
		for n := sub; n != nil; n = n.inner {
			n.host = host
		}
		u.expansion = sub
	}
	return err
}
