// Package symbols holds the declarations collected during the parse phase.
//
// A Builder is written by a single goroutine while the parse barrier is
// held. Freeze turns it into a Table that is shared read-only by every
// analysis worker without locking.
package symbols

import (
	"sort"
	"strings"
)

// Kind is the kind of a declaration.
type Kind string

const (
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindTrait     Kind = "trait"
	KindEnum      Kind = "enum"
	KindFunction  Kind = "function"
	KindConstant  Kind = "constant"
)

// Group is a namespace of names: classes, interfaces, traits and enums
// share one; functions and constants each have their own.
type Group int

const (
	GroupClassLike Group = iota
	GroupFunction
	GroupConstant
)

// Group returns the name group of k.
func (k Kind) Group() Group {
	switch k {
	case KindFunction:
		return GroupFunction
	case KindConstant:
		return GroupConstant
	default:
		return GroupClassLike
	}
}

// Declaration is one named declaration found in a source file. Name is fully
// qualified without a leading backslash.
type Declaration struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// Less orders declarations by file, line, name and kind.
func (d Declaration) Less(o Declaration) bool {
	if d.File != o.File {
		return d.File < o.File
	}
	if d.Line != o.Line {
		return d.Line < o.Line
	}
	if d.Name != o.Name {
		return d.Name < o.Name
	}
	return d.Kind < o.Kind
}

type key struct {
	group Group
	name  string
}

// normalize folds case for class-like and function names, which are case
// insensitive. Constants are case sensitive.
func normalize(g Group, name string) key {
	name = strings.TrimPrefix(name, `\`)
	if g != GroupConstant {
		name = strings.ToLower(name)
	}
	return key{group: g, name: name}
}

// Builder accumulates declarations. It is not safe for concurrent use.
type Builder struct {
	decls  map[key][]Declaration
	frozen bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{decls: make(map[key][]Declaration)}
}

// Add records declarations. It panics if called after Freeze.
func (b *Builder) Add(decls ...Declaration) {
	if b.frozen {
		panic("symbols: Add after Freeze")
	}
	for _, d := range decls {
		k := normalize(d.Kind.Group(), d.Name)
		b.decls[k] = append(b.decls[k], d)
	}
}

// Freeze sorts every entry and returns the read-only Table. The Builder
// cannot be used afterwards.
func (b *Builder) Freeze() *Table {
	b.frozen = true
	n := 0
	for k, ds := range b.decls {
		sort.Slice(ds, func(i, j int) bool { return ds[i].Less(ds[j]) })
		b.decls[k] = ds
		n += len(ds)
	}
	t := &Table{decls: b.decls, size: n}
	b.decls = nil
	return t
}

// Table is the frozen symbol table. All methods are safe for concurrent use.
type Table struct {
	decls map[key][]Declaration
	size  int
}

// Lookup returns the first declaration (by file, line) of name in group g.
func (t *Table) Lookup(g Group, name string) (Declaration, bool) {
	if t == nil {
		return Declaration{}, false
	}
	ds := t.decls[normalize(g, name)]
	if len(ds) == 0 {
		return Declaration{}, false
	}
	return ds[0], true
}

// Has reports whether name is declared in group g.
func (t *Table) Has(g Group, name string) bool {
	_, ok := t.Lookup(g, name)
	return ok
}

// Declarations returns every declaration of name in group g in
// deterministic order. The returned slice must not be modified.
func (t *Table) Declarations(g Group, name string) []Declaration {
	if t == nil {
		return nil
	}
	return t.decls[normalize(g, name)]
}

// Len returns the number of declarations recorded.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Sort orders declarations in place by Declaration.Less.
func Sort(decls []Declaration) {
	sort.Slice(decls, func(i, j int) bool { return decls[i].Less(decls[j]) })
}
