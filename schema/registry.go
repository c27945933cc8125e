package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/formulite/schema/field"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedPrefixes are table name prefixes owned by SQLite and the engine.
var reservedPrefixes = []string{"sqlite_", "formulite_"}

// Reserved reports if a table name is owned by SQLite or the engine itself.
func Reserved(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func validName(kind, name string) error {
	if len(name) > 128 || !identRe.MatchString(name) {
		return fmt.Errorf("formulite: invalid %s name %q", kind, name)
	}
	return nil
}

// Registry holds the entity descriptors by name. It is not safe for
// concurrent use; the client serializes access to it.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Len returns the number of entities.
func (r *Registry) Len() int { return len(r.order) }

// Lookup returns the entity with the given name.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Entity returns the entity with the given name, or ErrUnknownEntity.
func (r *Registry) Entity(name string) (*Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return e, nil
}

// Entities returns all entities in declaration order.
func (r *Registry) Entities() []*Entity {
	es := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		es = append(es, r.entities[name])
	}
	return es
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{entities: make(map[string]*Entity, len(r.entities)), order: slices.Clone(r.order)}
	for name, e := range r.entities {
		c.entities[name] = e.Clone()
	}
	return c
}

// Declare registers a root entity with its attributes.
func (r *Registry) Declare(name string, attrs ...field.Descriptor) (*Entity, error) {
	return r.declare(name, "", attrs)
}

// DeclareDerived registers an entity deriving from parent. Only the
// attributes the entity adds are given; inherited attributes stay on the
// parent.
func (r *Registry) DeclareDerived(name, parent string, attrs ...field.Descriptor) (*Entity, error) {
	if _, err := r.Entity(parent); err != nil {
		return nil, err
	}
	return r.declare(name, parent, attrs)
}

func (r *Registry) declare(name, parent string, attrs []field.Descriptor) (*Entity, error) {
	if err := r.checkTableName(name); err != nil {
		return nil, err
	}
	e := &Entity{Name: name, Parent: parent}
	taken := r.chainNames(parent)
	for _, a := range attrs {
		if err := r.checkAttribute(e, a, taken); err != nil {
			return nil, err
		}
		e.Attributes = append(e.Attributes, a)
	}
	surrogate, err := surrogateName(name, func(s string) bool {
		return e.hasName(s) || taken(s)
	})
	if err != nil {
		return nil, err
	}
	e.Surrogate = surrogate
	if parent != "" {
		e.PrimaryKey = []string{surrogate}
	}
	r.entities[name] = e
	r.order = append(r.order, name)
	return e, nil
}

// Add registers a fully formed entity, as reconstructed from a snapshot.
// Its parent, foreign key targets and list elements must already exist.
func (r *Registry) Add(e *Entity) error {
	if err := r.checkTableName(e.Name); err != nil {
		return err
	}
	if e.Derived() {
		if _, err := r.Entity(e.Parent); err != nil {
			return err
		}
	}
	if err := validName("column", e.Surrogate); err != nil {
		return err
	}
	for _, a := range e.Lists() {
		if _, scalar := a.ElemType(); !scalar {
			if _, err := r.Entity(a.Elem); err != nil {
				return err
			}
		}
	}
	for _, fk := range e.ForeignKeys {
		if _, err := r.Entity(fk.RefEntity); err != nil {
			return err
		}
	}
	e = e.Clone()
	r.entities[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// checkTableName validates a new entity name against existing entities and
// linked tables. Names compare case-insensitively, as SQLite table names do.
func (r *Registry) checkTableName(name string) error {
	if err := validName("entity", name); err != nil {
		return err
	}
	if Reserved(name) {
		return fmt.Errorf("formulite: entity name %q uses a reserved prefix", name)
	}
	for _, e := range r.entities {
		if strings.EqualFold(e.Name, name) {
			return fmt.Errorf("%w: %q", ErrDuplicateEntity, name)
		}
		for _, a := range e.Lists() {
			if strings.EqualFold(LinkTable(e.Name, a.Name), name) {
				return fmt.Errorf("%w: %q is the linked table of %s.%s", ErrDuplicateEntity, name, e.Name, a.Name)
			}
		}
	}
	return nil
}

// checkAttribute validates an attribute about to be added to e. The taken
// function reports names already used elsewhere in the hierarchy.
func (r *Registry) checkAttribute(e *Entity, a field.Descriptor, taken func(string) bool) error {
	if err := validName("attribute", a.Name); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return fmt.Errorf("formulite: invalid type for attribute %q", a.Name)
	}
	if e.hasName(a.Name) || taken(a.Name) {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateAttribute, e.Name, a.Name)
	}
	if !a.IsList() {
		return nil
	}
	if _, scalar := a.ElemType(); scalar {
		return nil
	}
	if a.Elem == e.Name {
		return fmt.Errorf("%w: list %s.%s refers to its own entity", ErrInvalidForeignKey, e.Name, a.Name)
	}
	if _, err := r.Entity(a.Elem); err != nil {
		return err
	}
	if r.reaches(a.Elem, e.Name) {
		return fmt.Errorf("%w: list %s.%s creates a cycle", ErrInvalidForeignKey, e.Name, a.Name)
	}
	table := LinkTable(e.Name, a.Name)
	for _, other := range r.entities {
		if strings.EqualFold(other.Name, table) {
			return fmt.Errorf("%w: linked table %q clashes with an entity", ErrDuplicateEntity, table)
		}
	}
	return nil
}

// chainNames returns a function reporting whether a name is used by the
// attributes or surrogate keys of name and its ancestors.
func (r *Registry) chainNames(name string) func(string) bool {
	var chain []*Entity
	for n := name; n != ""; {
		e, ok := r.entities[n]
		if !ok {
			break
		}
		chain = append(chain, e)
		n = e.Parent
	}
	return func(s string) bool {
		for _, e := range chain {
			if e.hasName(s) {
				return true
			}
		}
		return false
	}
}

// hierarchyNames is like chainNames, but also covers the descendants of
// name, excluding name itself.
func (r *Registry) hierarchyNames(name string) func(string) bool {
	e := r.entities[name]
	ancestors := r.chainNames(e.Parent)
	descendants := r.Descendants(name)
	return func(s string) bool {
		if ancestors(s) {
			return true
		}
		for _, d := range descendants {
			if d.hasName(s) {
				return true
			}
		}
		return false
	}
}

func surrogateName(entity string, taken func(string) bool) (string, error) {
	base := inflect.Underscore(entity)
	for _, suffix := range []string{"_id", "_key", "_rowid"} {
		if name := base + suffix; !taken(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no free surrogate key column for %q", ErrDuplicateAttribute, entity)
}

// SetPrimaryKey replaces the primary key of a root entity.
func (r *Registry) SetPrimaryKey(name string, attrs ...string) error {
	e, err := r.keyable(name, attrs)
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return fmt.Errorf("%w: empty primary key for %q", ErrPrimaryKeyViolation, name)
	}
	pk := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if !slices.Contains(pk, a) {
			pk = append(pk, a)
		}
	}
	e.PrimaryKey = pk
	return nil
}

// AppendPrimaryKey appends attributes to the primary key of a root
// entity. Attributes already in the key are skipped.
func (r *Registry) AppendPrimaryKey(name string, attrs ...string) error {
	e, err := r.keyable(name, attrs)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		if !e.InPrimaryKey(a) {
			e.PrimaryKey = append(e.PrimaryKey, a)
		}
	}
	return nil
}

func (r *Registry) keyable(name string, attrs []string) (*Entity, error) {
	e, err := r.Entity(name)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		d, ok := e.Attribute(a)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, name, a)
		}
		if d.IsList() {
			return nil, fmt.Errorf("%w: list attribute %s.%s cannot be a key", ErrPrimaryKeyViolation, name, a)
		}
	}
	if e.Derived() {
		return nil, fmt.Errorf("%w: derived entity %q is keyed by %q", ErrPrimaryKeyViolation, name, e.Surrogate)
	}
	return e, nil
}

// RefColumn returns the column a foreign key to ref points at: the single
// primary key column of a root entity, or the surrogate key otherwise.
func (r *Registry) RefColumn(ref string) (string, field.Type, error) {
	e, err := r.Entity(ref)
	if err != nil {
		return "", field.TypeInvalid, err
	}
	if !e.Derived() && len(e.PrimaryKey) == 0 {
		return "", field.TypeInvalid, fmt.Errorf("%w: %q has no primary key", ErrInvalidForeignKey, ref)
	}
	if e.Derived() || len(e.PrimaryKey) > 1 {
		return e.Surrogate, field.TypeInt, nil
	}
	d, _ := e.Attribute(e.PrimaryKey[0])
	return d.Name, d.Type, nil
}

// SetForeignKey declares attr of entity name as referencing entity ref.
// A second declaration on the same attribute replaces the first.
func (r *Registry) SetForeignKey(name, attr, ref string) error {
	e, err := r.Entity(name)
	if err != nil {
		return err
	}
	d, ok := e.Attribute(attr)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, name, attr)
	}
	if d.IsList() {
		return fmt.Errorf("%w: list attribute %s.%s cannot reference an entity", ErrInvalidForeignKey, name, attr)
	}
	column, typ, err := r.RefColumn(ref)
	if err != nil {
		return err
	}
	if typ != d.Type {
		return fmt.Errorf("%w: %s.%s is %s but %s.%s is %s", ErrInvalidForeignKey, name, attr, d.Type, ref, column, typ)
	}
	if ref == name || r.reaches(ref, name) {
		return fmt.Errorf("%w: %s.%s -> %s creates a cycle", ErrInvalidForeignKey, name, attr, ref)
	}
	fk := ForeignKey{Attribute: attr, RefEntity: ref, RefColumn: column}
	for i := range e.ForeignKeys {
		if e.ForeignKeys[i].Attribute == attr {
			e.ForeignKeys[i] = fk
			return nil
		}
	}
	e.ForeignKeys = append(e.ForeignKeys, fk)
	return nil
}

// dependencies returns the entities a table of e refers to.
func (r *Registry) dependencies(e *Entity) []string {
	var deps []string
	if e.Parent != "" {
		deps = append(deps, e.Parent)
	}
	for _, fk := range e.ForeignKeys {
		deps = append(deps, fk.RefEntity)
	}
	for _, a := range e.Lists() {
		if _, scalar := a.ElemType(); !scalar {
			deps = append(deps, a.Elem)
		}
	}
	return deps
}

// reaches reports if to is reachable from from over dependency edges.
func (r *Registry) reaches(from, to string) bool {
	seen := make(map[string]bool)
	var visit func(string) bool
	visit = func(n string) bool {
		if n == to {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		e, ok := r.entities[n]
		if !ok {
			return false
		}
		for _, d := range r.dependencies(e) {
			if visit(d) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// Sorted returns the entities in dependency order: parents, referenced
// entities and list elements come before the entities using them. Ties
// keep declaration order.
func (r *Registry) Sorted() []*Entity {
	var (
		sorted []*Entity
		done   = make(map[string]bool)
		visit  func(string)
	)
	visit = func(n string) {
		if done[n] {
			return
		}
		done[n] = true
		e, ok := r.entities[n]
		if !ok {
			return
		}
		for _, d := range r.dependencies(e) {
			visit(d)
		}
		sorted = append(sorted, e)
	}
	for _, n := range r.order {
		visit(n)
	}
	return sorted
}

// Chain returns the entity and its ancestors, root first.
func (r *Registry) Chain(name string) ([]*Entity, error) {
	var chain []*Entity
	for n := name; n != ""; {
		e, err := r.Entity(n)
		if err != nil {
			return nil, err
		}
		chain = append([]*Entity{e}, chain...)
		n = e.Parent
	}
	return chain, nil
}

// Children returns the direct subtypes of an entity in declaration order.
func (r *Registry) Children(name string) []*Entity {
	var children []*Entity
	for _, n := range r.order {
		if e := r.entities[n]; e.Parent == name {
			children = append(children, e)
		}
	}
	return children
}

// Descendants returns all subtypes of an entity, level by level, so that
// every entity comes after its parent.
func (r *Registry) Descendants(name string) []*Entity {
	var all []*Entity
	queue := r.Children(name)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		all = append(all, e)
		queue = append(queue, r.Children(e.Name)...)
	}
	return all
}

// Links returns the linked tables of an entity.
func (r *Registry) Links(name string) []Link {
	e, ok := r.entities[name]
	if !ok {
		return nil
	}
	var links []Link
	for _, a := range e.Lists() {
		links = append(links, r.link(e, a))
	}
	return links
}

func (r *Registry) link(e *Entity, a field.Descriptor) Link {
	l := Link{
		Table:       LinkTable(e.Name, a.Name),
		Owner:       e.Name,
		Attribute:   a.Name,
		OwnerColumn: e.Surrogate,
		ElemColumn:  ValueColumn,
	}
	if t, scalar := a.ElemType(); scalar {
		l.ElemType = t
		return l
	}
	l.ElemType, l.ElemEntity = field.TypeInt, a.Elem
	if elem, ok := r.entities[a.Elem]; ok && elem.Surrogate != e.Surrogate {
		l.ElemColumn = elem.Surrogate
	}
	return l
}

// Referrers returns the entities other than name whose tables refer to it.
func (r *Registry) Referrers(name string) []string {
	var refs []string
	for _, n := range r.order {
		if n == name {
			continue
		}
		if slices.Contains(r.dependencies(r.entities[n]), name) {
			refs = append(refs, n)
		}
	}
	return refs
}

// AddAttribute appends an attribute to an entity.
func (r *Registry) AddAttribute(name string, a field.Descriptor) error {
	e, err := r.Entity(name)
	if err != nil {
		return err
	}
	if err := r.checkAttribute(e, a, r.hierarchyNames(name)); err != nil {
		return err
	}
	e.Attributes = append(e.Attributes, a)
	return nil
}

// DropAttribute removes an attribute from an entity. Key and foreign key
// attributes cannot be dropped.
func (r *Registry) DropAttribute(name, attr string) error {
	e, err := r.Entity(name)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(e.Attributes, func(a field.Descriptor) bool { return a.Name == attr })
	switch {
	case i == -1:
		return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, name, attr)
	case e.InPrimaryKey(attr):
		return fmt.Errorf("%w: %s.%s is part of the primary key", ErrPrimaryKeyViolation, name, attr)
	}
	if _, ok := e.ForeignKey(attr); ok {
		return fmt.Errorf("%w: %s.%s is a foreign key", ErrForeignKeyViolation, name, attr)
	}
	e.Attributes = slices.Delete(e.Attributes, i, i+1)
	return nil
}

// RenameEntity renames an entity and every reference to it.
func (r *Registry) RenameEntity(name, to string) error {
	e, err := r.Entity(name)
	if err != nil {
		return err
	}
	delete(r.entities, name)
	if err := r.checkTableName(to); err != nil {
		r.entities[name] = e
		return err
	}
	e.Name = to
	r.entities[to] = e
	r.order[slices.Index(r.order, name)] = to
	for _, other := range r.entities {
		if other.Parent == name {
			other.Parent = to
		}
		for i := range other.ForeignKeys {
			if other.ForeignKeys[i].RefEntity == name {
				other.ForeignKeys[i].RefEntity = to
			}
		}
		for i := range other.Attributes {
			if other.Attributes[i].IsList() && other.Attributes[i].Elem == name {
				other.Attributes[i].Elem = to
			}
		}
	}
	return nil
}

// RenameAttribute renames an attribute and every reference to it.
func (r *Registry) RenameAttribute(name, attr, to string) error {
	e, err := r.Entity(name)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(e.Attributes, func(a field.Descriptor) bool { return a.Name == attr })
	if i == -1 {
		return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, name, attr)
	}
	if err := validName("attribute", to); err != nil {
		return err
	}
	taken := r.hierarchyNames(name)
	if !strings.EqualFold(attr, to) && (e.hasName(to) || taken(to)) {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateAttribute, name, to)
	}
	e.Attributes[i].Name = to
	for j, k := range e.PrimaryKey {
		if k == attr {
			e.PrimaryKey[j] = to
		}
	}
	for j := range e.ForeignKeys {
		if e.ForeignKeys[j].Attribute == attr {
			e.ForeignKeys[j].Attribute = to
		}
	}
	for _, other := range r.entities {
		for j := range other.ForeignKeys {
			if fk := &other.ForeignKeys[j]; fk.RefEntity == name && fk.RefColumn == attr {
				fk.RefColumn = to
			}
		}
	}
	return nil
}

// Remove deletes an entity. Entities still referred to by others cannot
// be removed.
func (r *Registry) Remove(name string) error {
	if _, err := r.Entity(name); err != nil {
		return err
	}
	if refs := r.Referrers(name); len(refs) > 0 {
		return fmt.Errorf("%w: %q is referenced by %s", ErrForeignKeyViolation, name, strings.Join(refs, ", "))
	}
	delete(r.entities, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return nil
}

// ParentKey returns the implicit foreign key of a derived entity to its
// parent: the link column, named after the parent's surrogate key.
func (r *Registry) ParentKey(e *Entity) (ForeignKey, bool) {
	if !e.Derived() {
		return ForeignKey{}, false
	}
	p, ok := r.entities[e.Parent]
	if !ok {
		return ForeignKey{}, false
	}
	return ForeignKey{Attribute: p.Surrogate, RefEntity: p.Name, RefColumn: p.Surrogate}, true
}

// JoinPath returns the columns joining a and b. The foreign keys of a are
// tried first in declaration order, followed by its parent link, then the
// foreign keys of b. It fails with ErrNoJoinPath if neither entity refers
// to the other.
func (r *Registry) JoinPath(a, b string) (string, string, error) {
	ea, err := r.Entity(a)
	if err != nil {
		return "", "", err
	}
	eb, err := r.Entity(b)
	if err != nil {
		return "", "", err
	}
	if fk, ok := r.refersTo(ea, b); ok {
		return a + "." + fk.Attribute, b + "." + fk.RefColumn, nil
	}
	if fk, ok := r.refersTo(eb, a); ok {
		return a + "." + fk.RefColumn, b + "." + fk.Attribute, nil
	}
	return "", "", fmt.Errorf("%w: between %q and %q", ErrNoJoinPath, a, b)
}

func (r *Registry) refersTo(e *Entity, ref string) (ForeignKey, bool) {
	fks := e.ForeignKeys
	if pk, ok := r.ParentKey(e); ok {
		fks = append(slices.Clone(fks), pk)
	}
	for _, fk := range fks {
		if fk.RefEntity == ref {
			return fk, true
		}
	}
	return ForeignKey{}, false
}
