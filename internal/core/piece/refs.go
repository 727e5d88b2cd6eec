package piece

import (
	"iter"
	"maps"
	"slices"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// IDSet is an insertion-ordered set of piece identifiers. Relationship
// traits keep their back-references in one so that re-adding a member
// never duplicates it.
type IDSet struct {
	ids []string
}

// NewIDSet returns a set holding ids in order.
func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add appends id unless it is empty or already present.
func (s *IDSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (s *IDSet) Remove(id string) bool {
	i := slices.Index(s.ids, id)
	if i < 0 {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	return true
}

// Contains reports whether id is in the set.
func (s *IDSet) Contains(id string) bool { return slices.Contains(s.ids, id) }

// Len is the number of identifiers.
func (s *IDSet) Len() int { return len(s.ids) }

// IDs returns a copy in insertion order.
func (s *IDSet) IDs() []string { return slices.Clone(s.ids) }

// Clear empties the set.
func (s *IDSet) Clear() { s.ids = s.ids[:0] }

// Registry is a minimal Env backed by a map. Game sessions bring their own;
// this one serves tools and tests that only need pieces to find each other.
type Registry struct {
	mu       sync.RWMutex
	pieces   map[string]*Piece
	printer  *message.Printer
	reported []*Fault
}

// NewRegistry returns an empty registry formatting for lang.
func NewRegistry(lang language.Tag) *Registry {
	return &Registry{
		pieces:  make(map[string]*Piece),
		printer: message.NewPrinter(lang),
	}
}

// Add registers p under its identifier.
func (r *Registry) Add(p *Piece) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pieces[p.ID()] = p
}

// Remove forgets the piece with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pieces, id)
}

// Lookup resolves id.
func (r *Registry) Lookup(id string) (*Piece, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pieces[id]
	return p, ok
}

// Pieces yields a snapshot of the registered pieces in identifier order.
func (r *Registry) Pieces() iter.Seq[*Piece] {
	r.mu.RLock()
	ids := slices.Sorted(maps.Keys(r.pieces))
	pieces := make([]*Piece, 0, len(ids))
	for _, id := range ids {
		pieces = append(pieces, r.pieces[id])
	}
	r.mu.RUnlock()
	return slices.Values(pieces)
}

// Printer formats localized properties.
func (r *Registry) Printer() *message.Printer { return r.printer }

// ReportFault keeps the faults in err for Reported.
func (r *Registry) ReportFault(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, Faults(err)...)
}

// Reported returns the faults reported so far.
func (r *Registry) Reported() []*Fault {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.reported)
}
