package hook

import "sort"

// FetchKind discriminates the three cases of a fetch or value tree.
type FetchKind uint8

const (
	fetchInvalid FetchKind = iota
	// FetchOp is a single named output of a step.
	FetchOp
	// FetchList is an ordered sequence of fetches.
	FetchList
	// FetchMap is a named mapping of fetches.
	FetchMap
)

// String returns the kind name.
func (k FetchKind) String() string {
	switch k {
	case FetchOp:
		return "op"
	case FetchList:
		return "list"
	case FetchMap:
		return "map"
	default:
		return "invalid"
	}
}

// Fetch describes requested outputs of a step: a single named output, a
// sequence of fetches, or a mapping from name to fetch, nested to any
// depth. The zero Fetch is invalid and fetches nothing.
//
// No structural validation happens at construction; the execution engine
// decides whether the named outputs exist.
type Fetch struct {
	kind    FetchKind
	op      string
	list    []Fetch
	entries map[string]Fetch
}

// Op returns a fetch for a single named output.
func Op(name string) Fetch {
	return Fetch{kind: FetchOp, op: name}
}

// List returns a fetch for an ordered sequence of fetches.
func List(items ...Fetch) Fetch {
	cp := make([]Fetch, len(items))
	copy(cp, items)
	return Fetch{kind: FetchList, list: cp}
}

// Map returns a fetch for a named mapping of fetches.
func Map(entries map[string]Fetch) Fetch {
	cp := make(map[string]Fetch, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Fetch{kind: FetchMap, entries: cp}
}

// Kind returns the case of this fetch.
func (f Fetch) Kind() FetchKind { return f.kind }

// IsZero reports whether the fetch is the invalid zero value.
func (f Fetch) IsZero() bool { return f.kind == fetchInvalid }

// OpName returns the output name of an op fetch, or "" for other kinds.
func (f Fetch) OpName() string { return f.op }

// Items returns a copy of the elements of a list fetch.
func (f Fetch) Items() []Fetch {
	cp := make([]Fetch, len(f.list))
	copy(cp, f.list)
	return cp
}

// Entries returns a copy of the entries of a map fetch.
func (f Fetch) Entries() map[string]Fetch {
	cp := make(map[string]Fetch, len(f.entries))
	for k, v := range f.entries {
		cp[k] = v
	}
	return cp
}

// Ops returns the distinct output names referenced anywhere in the fetch
// tree, sorted for deterministic execution order.
func (f Fetch) Ops() []string {
	seen := make(map[string]struct{})
	f.collectOps(seen)
	ops := make([]string, 0, len(seen))
	for op := range seen {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (f Fetch) collectOps(seen map[string]struct{}) {
	switch f.kind {
	case FetchOp:
		seen[f.op] = struct{}{}
	case FetchList:
		for _, item := range f.list {
			item.collectOps(seen)
		}
	case FetchMap:
		for _, item := range f.entries {
			item.collectOps(seen)
		}
	}
}

// Value is the result counterpart of Fetch: a scalar, a sequence of
// values, or a named mapping of values, mirroring the nesting of the
// fetch that produced it.
type Value struct {
	kind    FetchKind
	scalar  any
	list    []Value
	entries map[string]Value
}

// ScalarValue returns a value holding a single computed output.
func ScalarValue(v any) Value {
	return Value{kind: FetchOp, scalar: v}
}

// ListValue returns a value holding an ordered sequence of values.
func ListValue(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: FetchList, list: cp}
}

// MapValue returns a value holding a named mapping of values.
func MapValue(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: FetchMap, entries: cp}
}

// Kind returns the case of this value.
func (v Value) Kind() FetchKind { return v.kind }

// IsZero reports whether the value is the invalid zero value.
func (v Value) IsZero() bool { return v.kind == fetchInvalid }

// Scalar returns the computed output of a scalar value, or nil for other
// kinds.
func (v Value) Scalar() any { return v.scalar }

// Len returns the number of elements of a list value.
func (v Value) Len() int { return len(v.list) }

// Index returns the i-th element of a list value.
func (v Value) Index(i int) Value { return v.list[i] }

// Items returns a copy of the elements of a list value.
func (v Value) Items() []Value {
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp
}

// Key returns the named entry of a map value.
func (v Value) Key(name string) (Value, bool) {
	item, ok := v.entries[name]
	return item, ok
}

// Entries returns a copy of the entries of a map value.
func (v Value) Entries() map[string]Value {
	cp := make(map[string]Value, len(v.entries))
	for k, item := range v.entries {
		cp[k] = item
	}
	return cp
}

// MirrorsShape reports whether the value tree has exactly the nesting of
// the given fetch tree: same kinds, same list lengths, same map keys.
func (v Value) MirrorsShape(f Fetch) bool {
	if v.kind != f.kind {
		return false
	}
	switch v.kind {
	case FetchOp:
		return true
	case FetchList:
		if len(v.list) != len(f.list) {
			return false
		}
		for i, item := range v.list {
			if !item.MirrorsShape(f.list[i]) {
				return false
			}
		}
		return true
	case FetchMap:
		if len(v.entries) != len(f.entries) {
			return false
		}
		for k, item := range v.entries {
			sub, ok := f.entries[k]
			if !ok || !item.MirrorsShape(sub) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Interface converts the value tree to plain Go data: scalars stay as-is,
// lists become []any and maps become map[string]any. Useful for logging,
// JSONPath addressing and scripting.
func (v Value) Interface() any {
	switch v.kind {
	case FetchOp:
		return v.scalar
	case FetchList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case FetchMap:
		out := make(map[string]any, len(v.entries))
		for k, item := range v.entries {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}
