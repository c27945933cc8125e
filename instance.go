package formulite

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/syssam/formulite/schema"
	"github.com/syssam/formulite/schema/field"
)

// Instance is one value of an entity: the attribute values of the entity
// and all its ancestors, keyed by attribute name.
//
// List attributes hold a []any. Elements of entity lists are the element
// instances' surrogate keys (int64); Build also accepts *Instance elements
// that were already inserted.
type Instance struct {
	Entity string
	Values map[string]any
	// Keys holds the surrogate key of the instance's row at each level of
	// its hierarchy, by entity name. It is filled by inserts and reads.
	// Filter on a key with the column returned by Client.KeyColumn.
	Keys map[string]int64
}

// Get returns the value of an attribute.
func (i *Instance) Get(name string) any {
	return i.Values[name]
}

// Key returns the surrogate key of the instance's most derived row, or 0
// if it is not known.
func (i *Instance) Key() int64 {
	return i.Keys[i.Entity]
}

// String implements the fmt.Stringer interface.
func (i *Instance) String() string {
	var b strings.Builder
	b.WriteString(i.Entity)
	b.WriteByte('(')
	for j, k := range sortedKeys(i.Values) {
		if j > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, i.Values[k])
	}
	b.WriteByte(')')
	return b.String()
}

// Build returns an instance of entity with the given attribute values,
// converted to their declared types. Attributes not given are nil.
func (c *Client) Build(entity string, values map[string]any) (*Instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, err := c.registry.Chain(entity)
	if err != nil {
		return nil, err
	}
	vs, err := normalize(chain, values, true)
	if err != nil {
		return nil, fmt.Errorf("formulite: build %s: %w", entity, err)
	}
	return &Instance{Entity: entity, Values: vs, Keys: make(map[string]int64)}, nil
}

// normalize checks values against the attributes of an entity chain and
// converts them. With fill, missing attributes are set to nil.
func normalize(chain []*schema.Entity, values map[string]any, fill bool) (map[string]any, error) {
	known := make(map[string]field.Descriptor)
	for _, e := range chain {
		for _, a := range e.Attributes {
			known[a.Name] = a
		}
	}
	out := make(map[string]any, len(known))
	for name, v := range values {
		a, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
		}
		cv, err := convert(a, v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = cv
	}
	if fill {
		for name := range known {
			if _, ok := out[name]; !ok {
				out[name] = nil
			}
		}
	}
	return out, nil
}

func convert(a field.Descriptor, v any) (any, error) {
	if !a.IsList() {
		return field.Convert(a.Type, v)
	}
	if v == nil {
		return []any(nil), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expect a list, got %T", v)
	}
	elems := make([]any, rv.Len())
	for i := range elems {
		e, err := convertElem(a, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	return elems, nil
}

func convertElem(a field.Descriptor, v any) (any, error) {
	if t, scalar := a.ElemType(); scalar {
		e, err := field.Convert(t, v)
		if err == nil && e == nil {
			return nil, fmt.Errorf("nil element")
		}
		return e, err
	}
	if inst, ok := v.(*Instance); ok {
		if inst == nil {
			return nil, fmt.Errorf("nil element")
		}
		key := inst.Keys[a.Elem]
		if key == 0 {
			return nil, fmt.Errorf("element %s has no %s key, insert it first", inst, a.Elem)
		}
		return key, nil
	}
	key, err := field.Convert(field.TypeInt, v)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("nil element")
	}
	return key, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
