package binding

import (
	"math"
	"strconv"
	"strings"

	"github.com/HugoDaniel/csl/internal/dialect"
	"github.com/HugoDaniel/csl/internal/diagnostic"
)

// State accumulates binding information over one expansion, across every
// file of the include tree.
type State struct {
	dialect dialect.Dialect
	base    uint32
	strict  bool

	used    map[Bucket]map[uint32]struct{}
	schemes map[Bucket]scheme
	pending bool

	placeholders int
	hardcoded    int
}

type scheme struct {
	hardcoded, placeholder, reported bool
}

// Options configures a State.
type Options struct {
	// BaseIndex seeds the GLSL counter. HLSL counters always start at 0.
	BaseIndex uint32
	// Strict rejects a bucket that mixes hardcoded and placeholder indices.
	Strict bool
}

// NewState creates an empty state for output in dialect d.
func NewState(d dialect.Dialect, opts Options) *State {
	return &State{
		dialect: d,
		base:    opts.BaseIndex,
		strict:  opts.Strict,
		used:    make(map[Bucket]map[uint32]struct{}),
		schemes: make(map[Bucket]scheme),
	}
}

// Record scans an emitted line. Hardcoded indices are remembered so the
// allocator skips them and placeholders mark the state as pending. Mixing
// both in one bucket fails in strict mode and is reported to warn
// otherwise; warn may be nil.
func (s *State) Record(text string, warn func(kind diagnostic.Kind, format string, args ...any)) error {
	return Scan(text, s.dialect, func(site Site) error {
		b := site.Bucket()
		sc := s.schemes[b]
		if site.Placeholder {
			s.pending = true
			s.placeholders++
			sc.placeholder = true
		} else {
			set := s.used[b]
			if set == nil {
				set = make(map[uint32]struct{})
				s.used[b] = set
			}
			set[site.Index] = struct{}{}
			s.hardcoded++
			sc.hardcoded = true
		}

		if sc.hardcoded && sc.placeholder && !sc.reported {
			sc.reported = true
			if s.strict {
				s.schemes[b] = sc
				return diagnostic.New(diagnostic.MixedBindingScheme,
					"%s mixes hardcoded and automatically assigned indices", b).WithText(text, site.Offset+1)
			}
			if warn != nil {
				warn(diagnostic.MixedBindingScheme,
					"%s mixes hardcoded and automatically assigned indices", b)
			}
		}
		s.schemes[b] = sc
		return nil
	})
}

// Pending reports whether a placeholder was seen.
func (s *State) Pending() bool {
	return s.pending
}

// Placeholders returns the number of placeholders recorded.
func (s *State) Placeholders() int {
	return s.placeholders
}

// Hardcoded returns the number of hardcoded indices recorded.
func (s *State) Hardcoded() int {
	return s.hardcoded
}

// Used reports whether index is hardcoded in bucket b.
func (s *State) Used(b Bucket, index uint32) bool {
	_, ok := s.used[b][index]
	return ok
}

// Assignment is one binding found by the allocator in the final text.
type Assignment struct {
	Bucket
	Index    uint32
	Column   int  // 1-based byte column of the index
	Assigned bool // index was a placeholder
}

// Allocator replaces placeholders with free indices in textual order.
type Allocator struct {
	s         *State
	next      map[Bucket]uint32
	exhausted map[Bucket]bool
}

// Allocator starts the assignment pass.
func (s *State) Allocator() *Allocator {
	return &Allocator{s: s, next: make(map[Bucket]uint32), exhausted: make(map[Bucket]bool)}
}

// Assign replaces the placeholders of one line of final output and returns
// the rewritten line together with every binding it declares. Lines must be
// passed in output order.
func (a *Allocator) Assign(text string) (string, []Assignment, error) {
	var (
		sites []Site
		out   []Assignment
	)
	err := Scan(text, a.s.dialect, func(site Site) error {
		if !site.Placeholder {
			out = append(out, Assignment{Bucket: site.Bucket(), Index: site.Index, Column: site.Offset + 1})
			return nil
		}
		index, err := a.take(site.Bucket())
		if err != nil {
			return err
		}
		site.Index = index
		sites = append(sites, site)
		out = append(out, Assignment{Bucket: site.Bucket(), Index: index, Column: site.Offset + 1, Assigned: true})
		return nil
	})
	if err != nil || len(sites) == 0 {
		return text, out, err
	}
	return replace(text, sites), out, nil
}

func (a *Allocator) take(b Bucket) (uint32, error) {
	if a.exhausted[b] {
		return 0, diagnostic.New(diagnostic.NumericConversion, "%s has no free index left", b)
	}
	next, ok := a.next[b]
	if !ok && b.Type == 0 {
		next = a.s.base
	}
	for a.s.Used(b, next) {
		if next == math.MaxUint32 {
			return 0, diagnostic.New(diagnostic.NumericConversion, "%s has no free index left", b)
		}
		next++
	}
	if next == math.MaxUint32 {
		a.exhausted[b] = true
	}
	a.next[b] = next + 1
	return next, nil
}

func replace(text string, sites []Site) string {
	var sb strings.Builder
	last := 0
	for _, site := range sites {
		sb.WriteString(text[last:site.Offset])
		sb.WriteString(strconv.FormatUint(uint64(site.Index), 10))
		last = site.Offset + site.Len
	}
	sb.WriteString(text[last:])
	return sb.String()
}
