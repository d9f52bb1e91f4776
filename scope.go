package unwind

import (
	"maps"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Namespace is a single name → value binding table.
type Namespace map[string]any

// Lookup returns the value bound to name.
func (n Namespace) Lookup(name string) (any, bool) {
	v, ok := n[name]
	return v, ok
}

// Clone returns a shallow copy of n. A nil namespace clones to an empty one.
func (n Namespace) Clone() Namespace {
	if n == nil {
		return Namespace{}
	}
	return maps.Clone(n)
}

// Lookuper resolves a single name.
type Lookuper interface {
	Lookup(name string) (any, bool)
}

// Scopes is the ordered three-tier binding table of one frame:
// local, then global (enclosing), then builtin.
// A nil Builtin namespace falls back to [DefaultBuiltins].
type Scopes struct {
	Local   Namespace
	Global  Namespace
	Builtin Namespace
}

var _ Lookuper = Scopes{}

func (s Scopes) tiers() [3]Namespace {
	b := s.Builtin
	if b == nil {
		b = DefaultBuiltins()
	}
	return [3]Namespace{s.Local, s.Global, b}
}

// Lookup returns the value bound to name in the first scope that defines it.
func (s Scopes) Lookup(name string) (any, bool) {
	for _, ns := range s.tiers() {
		if v, ok := ns[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Resolve looks up a name or a dotted attribute path such as "a.b.c".
// The leading segment goes through [Scopes.Lookup]; every further segment
// is an attribute lookup on the previous result (see [Attr]).
// A missing name or attribute yields ok == false.
func (s Scopes) Resolve(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	head, rest, dotted := strings.Cut(path, ".")
	v, ok := s.Lookup(strings.TrimSpace(head))
	if !ok {
		return nil, false
	}
	for dotted {
		var seg string
		seg, rest, dotted = strings.Cut(rest, ".")
		if v, ok = Attr(v, strings.TrimSpace(seg)); !ok {
			return nil, false
		}
	}
	return v, true
}

// Attributer is implemented by values that expose named attributes.
type Attributer interface {
	Attr(name string) (any, bool)
}

// Attr looks up attribute name on v.
//
// Values implementing [Attributer] answer for themselves. String-keyed maps
// are indexed. Structs (and pointers to structs) expose exported fields and
// methods; a lower-case name also matches the capitalized Go identifier,
// so "user.name" finds the field Name.
func Attr(v any, name string) (got any, ok bool) {
	if v == nil || name == "" {
		return nil, false
	}
	if a, isAttr := v.(Attributer); isAttr {
		return a.Attr(name)
	}
	switch m := v.(type) {
	case Namespace:
		return m.Lookup(name)
	case map[string]any:
		got, ok = m[name]
		return got, ok
	}

	defer func() {
		if recover() != nil {
			got, ok = nil, false
		}
	}()

	rv := reflect.ValueOf(v)
	for _, n := range candidateNames(name) {
		if meth := rv.MethodByName(n); meth.IsValid() {
			return meth.Interface(), true
		}
	}

	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		e := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return nil, false
		}
		return e.Interface(), true
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	for _, n := range candidateNames(name) {
		f, found := rv.Type().FieldByName(n)
		if !found || !f.IsExported() {
			continue
		}
		return rv.FieldByIndex(f.Index).Interface(), true
	}
	return nil, false
}

func candidateNames(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return []string{name}
	}
	return []string{name, string(unicode.ToUpper(r)) + name[size:]}
}
