package core

import (
	"bytes"
	"fmt"
	"strconv"
)

// FlatRecord maps dotted-path keys to scalar values. Keys keep the order in
// which flattening first produced them. Values are never objects or arrays.
type FlatRecord struct {
	keys       []string
	values     map[string]Value
	collisions int
}

// NewFlatRecord returns an empty record.
func NewFlatRecord() FlatRecord {
	return FlatRecord{values: make(map[string]Value)}
}

// Keys returns the keys in first-seen order.
func (r FlatRecord) Keys() []string { return r.keys }

// Len returns the number of keys.
func (r FlatRecord) Len() int { return len(r.keys) }

// Get returns the value stored under key.
func (r FlatRecord) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Collisions reports how many writes replaced a value already stored under
// the same key while flattening.
func (r FlatRecord) Collisions() int { return r.collisions }

func (r *FlatRecord) set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, exists := r.values[key]; exists {
		r.collisions++
	} else {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Value returns the record as an object Value.
func (r FlatRecord) Value() Value {
	members := make([]Member, len(r.keys))
	for i, k := range r.keys {
		members[i] = Member{Key: k, Value: r.values[k]}
	}
	return Object(members...)
}

// MarshalJSON encodes the record as an object with keys in order.
func (r FlatRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	r.Value().appendJSON(&buf)
	return buf.Bytes(), nil
}

// Flattener reduces nested records to FlatRecords.
type Flattener struct {
	// MaxDepth limits how many nested levels are followed (0 uses DefaultMaxDepth).
	MaxDepth int
}

// Flatten flattens v with the default settings.
func Flatten(v Value) (FlatRecord, error) {
	return Flattener{}.Flatten(v)
}

// Flatten walks v and returns its scalar leaves keyed by path:
//
//   - object members extend the path with "." + key
//   - an array whose first element is an object is treated as a list of
//     sub-records; element i extends the path with "_" + i
//   - any other array (empty, scalars) is stored as its JSON text
//
// When two branches produce the same path the last write wins and the key
// keeps its first position. Top-level arrays are walked with their indexes
// as keys; top-level scalars produce an empty record.
func (f Flattener) Flatten(v Value) (FlatRecord, error) {
	out := NewFlatRecord()
	maxDepth := f.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var err error
	switch v.Kind() {
	case KindObject:
		err = flattenMembers(&out, v.Members(), "", 0, maxDepth)
	case KindArray:
		members := make([]Member, len(v.Items()))
		for i, item := range v.Items() {
			members[i] = Member{Key: strconv.Itoa(i), Value: item}
		}
		err = flattenMembers(&out, members, "", 0, maxDepth)
	}
	if err != nil {
		return FlatRecord{}, err
	}
	return out, nil
}

func flattenMembers(out *FlatRecord, members []Member, prefix string, depth, maxDepth int) error {
	if depth >= maxDepth {
		return &FailureError{
			Kind: KindUnsupportedStructure,
			Err:  fmt.Errorf("%w: more than %d levels", ErrDepthExceeded, maxDepth),
		}
	}

	for _, m := range members {
		path := m.Key
		if prefix != "" {
			path = prefix + "." + m.Key
		}

		switch val := m.Value; val.Kind() {
		case KindObject:
			if err := flattenMembers(out, val.Members(), path, depth+1, maxDepth); err != nil {
				return err
			}

		case KindArray:
			items := val.Items()
			if len(items) == 0 || !items[0].IsObject() {
				out.set(path, String(val.JSON()))
				continue
			}
			for i, item := range items {
				if !item.IsObject() {
					out.set(path, String(val.JSON()))
					continue
				}
				if err := flattenMembers(out, item.Members(), path+"_"+strconv.Itoa(i), depth+1, maxDepth); err != nil {
					return err
				}
			}

		default:
			out.set(path, val)
		}
	}
	return nil
}
