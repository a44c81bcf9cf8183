package fabrik

import (
	"sort"
	"strings"
)

// Splitter is the reserved separator addressing deep context: an override
// key "field__sub" targets sub-parameter "sub" of field "field".
const Splitter = "__"

// SequenceOverrideKey pins the sequence number of a single build call. It is
// stripped from overrides before declaration parsing.
const SequenceOverrideKey = "__sequence"

func splitKey(key string) (root, sub string, deep bool) {
	if i := strings.Index(key, Splitter); i >= 0 {
		return key[:i], key[i+len(Splitter):], true
	}
	return key, "", false
}

func joinKey(root, sub string) string {
	return root + Splitter + sub
}

// indexed is satisfied by every declaration kind; plain literal entries get
// an index assigned when they enter a set.
type indexed interface {
	CreationIndex() uint64
}

type setEntry struct {
	value any
	index uint64
}

// DeclarationContext is one field's view of a DeclarationSet: its name, its
// declaration (or literal value) and its deep-context overrides.
type DeclarationContext struct {
	Name        string
	Declaration any
	Context     map[string]any
}

// DeclarationSet maps field names to declarations, plus per-field deep
// context. Every deep-context root must name an existing field by the time
// an Update call finishes.
type DeclarationSet struct {
	entries  map[string]setEntry
	contexts map[string]map[string]any
}

// NewDeclarationSet builds a set from an initial declarations map, which may
// mix plain fields and deep-context keys.
func NewDeclarationSet(initial map[string]any) (*DeclarationSet, error) {
	s := &DeclarationSet{
		entries:  make(map[string]setEntry),
		contexts: make(map[string]map[string]any),
	}
	if err := s.Update(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Update applies a batch of overrides. Keys without the separator become or
// replace a field; keys with it set a sub-key in that field's deep context.
// After the whole batch is applied, deep context whose root is not a known
// field fails with an InvalidDeclarationError naming every offending key.
//
// Keys are walked in lexicographic order so the indices handed to literal
// entries never depend on map iteration order.
func (s *DeclarationSet) Update(values map[string]any) error {
	for _, k := range sortedKeys(values) {
		v := values[k]
		root, sub, deep := splitKey(k)
		if !deep {
			idx := uint64(0)
			if iv, ok := v.(indexed); ok {
				idx = iv.CreationIndex()
			} else {
				idx = nextDeclarationIndex()
			}
			s.entries[root] = setEntry{value: v, index: idx}
			continue
		}
		if s.contexts[root] == nil {
			s.contexts[root] = make(map[string]any)
		}
		s.contexts[root][sub] = v
	}

	var offending []string
	for root, subs := range s.contexts {
		if _, ok := s.entries[root]; ok {
			continue
		}
		for sub := range subs {
			offending = append(offending, joinKey(root, sub))
		}
	}
	if len(offending) > 0 {
		sort.Strings(offending)
		return &InvalidDeclarationError{
			Reason: "received deep context for unknown fields",
			Keys:   offending,
			Known:  s.FieldNames(),
		}
	}
	return nil
}

// Contains reports whether name is a declared field.
func (s *DeclarationSet) Contains(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Get returns the declaration context for a field.
func (s *DeclarationSet) Get(name string) (DeclarationContext, bool) {
	entry, ok := s.entries[name]
	if !ok {
		return DeclarationContext{}, false
	}
	return DeclarationContext{
		Name:        name,
		Declaration: entry.value,
		Context:     s.contexts[name],
	}, true
}

// Filter returns, in input order, the keys whose root names a known field.
func (s *DeclarationSet) Filter(keys []string) []string {
	var out []string
	for _, k := range keys {
		root, _, _ := splitKey(k)
		if s.Contains(root) {
			out = append(out, k)
		}
	}
	return out
}

// Sorted returns the field names in ascending creation-index order. The
// order is stable across calls and independent of how the entries arrived.
func (s *DeclarationSet) Sorted() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return s.entries[names[i]].index < s.entries[names[j]].index
	})
	return names
}

// FieldNames returns the declared field names in lexicographic order, for
// diagnostics.
func (s *DeclarationSet) FieldNames() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared fields.
func (s *DeclarationSet) Len() int {
	return len(s.entries)
}

// Copy returns a duplicate safe to mutate independently: call-time overrides
// applied to the copy never reach the factory's base set.
func (s *DeclarationSet) Copy() *DeclarationSet {
	other := &DeclarationSet{
		entries:  make(map[string]setEntry, len(s.entries)),
		contexts: make(map[string]map[string]any, len(s.contexts)),
	}
	for name, entry := range s.entries {
		other.entries[name] = entry
	}
	for root, subs := range s.contexts {
		other.contexts[root] = copyAnyMap(subs)
	}
	return other
}

// Flatten re-emits the set as a flat overrides map: field names mapped to
// their declarations plus joined deep-context keys. Applying the result to
// an empty set reproduces this one.
func (s *DeclarationSet) Flatten() map[string]any {
	out := make(map[string]any, len(s.entries))
	for name, entry := range s.entries {
		out[name] = entry.value
		for sub, v := range s.contexts[name] {
			out[joinKey(name, sub)] = v
		}
	}
	return out
}
