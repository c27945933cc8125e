package field

import (
	"fmt"
	"strings"
)

// Descriptor describes one attribute of an entity.
type Descriptor struct {
	Name string
	Type Type
	// Elem is the element of a list attribute: a scalar type name or the
	// name of another entity.
	Elem string
}

// String returns a new string attribute.
func String(name string) Descriptor { return Descriptor{Name: name, Type: TypeString} }

// Int returns a new integer attribute.
func Int(name string) Descriptor { return Descriptor{Name: name, Type: TypeInt} }

// Float returns a new float attribute.
func Float(name string) Descriptor { return Descriptor{Name: name, Type: TypeFloat} }

// Bool returns a new boolean attribute.
func Bool(name string) Descriptor { return Descriptor{Name: name, Type: TypeBool} }

// List returns a new list attribute. The element is either a scalar type
// name ("int", "string", ...) or an entity name.
//
//	field.List("tags", "string")
//	field.List("items", "Product")
func List(name, elem string) Descriptor {
	if t, ok := ParseScalar(elem); ok {
		elem = t.String()
	}
	return Descriptor{Name: name, Type: TypeList, Elem: elem}
}

// Parse parses an attribute from its name and type expression.
// A type expression in brackets declares a list: "[int]", "[Product]".
func Parse(name, typ string) (Descriptor, error) {
	typ = strings.TrimSpace(typ)
	if strings.HasPrefix(typ, "[") && strings.HasSuffix(typ, "]") {
		elem := strings.TrimSpace(typ[1 : len(typ)-1])
		if elem == "" {
			return Descriptor{}, fmt.Errorf("field: empty list element type for %q", name)
		}
		return List(name, elem), nil
	}
	t, ok := ParseScalar(typ)
	if !ok {
		return Descriptor{}, fmt.Errorf("field: unknown type %q for %q", typ, name)
	}
	return Descriptor{Name: name, Type: t}, nil
}

// IsList reports if the attribute is stored in a linked table.
func (d Descriptor) IsList() bool { return d.Type == TypeList }

// ElemType returns the scalar element type of a list attribute. The
// boolean is false when the element is an entity.
func (d Descriptor) ElemType() (Type, bool) {
	if !d.IsList() {
		return TypeInvalid, false
	}
	return ParseScalar(d.Elem)
}

// TypeName returns the type expression accepted by Parse.
func (d Descriptor) TypeName() string {
	if d.IsList() {
		return "[" + d.Elem + "]"
	}
	return d.Type.String()
}

// String implements the fmt.Stringer interface.
func (d Descriptor) String() string {
	return d.Name + " " + d.TypeName()
}
