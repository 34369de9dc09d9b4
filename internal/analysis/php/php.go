// Package php is the built-in PHP collaborator. It parses sources with the
// tree-sitter PHP grammar, extracts top-level declarations for the symbol
// table and raises a small set of structural issues.
package php

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tsphp "github.com/smacker/go-tree-sitter/php"

	"github.com/garagon/sifter/internal/analysis"
	"github.com/garagon/sifter/internal/symbols"
	"github.com/garagon/sifter/internal/types"
)

// Issue categories raised by the engine.
const (
	CategorySyntaxError           = "PhanSyntaxError"
	CategoryEmptyFile             = "PhanEmptyFile"
	CategoryRedefineClass         = "PhanRedefineClass"
	CategoryRedefineFunction      = "PhanRedefineFunction"
	CategoryUndeclaredExtended    = "PhanUndeclaredExtendedClass"
	CategoryUndeclaredInterface   = "PhanUndeclaredInterface"
	CategoryUndeclaredClassMethod = "PhanUndeclaredClassMethod"
)

// Categories lists every category with its severity.
var Categories = map[string]types.Severity{
	CategorySyntaxError:           types.SeverityCritical,
	CategoryEmptyFile:             types.SeverityLow,
	CategoryRedefineClass:         types.SeverityNormal,
	CategoryRedefineFunction:      types.SeverityNormal,
	CategoryUndeclaredExtended:    types.SeverityCritical,
	CategoryUndeclaredInterface:   types.SeverityCritical,
	CategoryUndeclaredClassMethod: types.SeverityCritical,
}

var language = tsphp.GetLanguage()

// Engine implements analysis.Parser and analysis.Analyzer.
type Engine struct {
	opts    analysis.Options
	parsers sync.Pool
}

// New creates an Engine. Parsers are pooled since a tree-sitter parser must
// not be shared between goroutines.
func New(opts analysis.Options) *Engine {
	return &Engine{
		opts: opts,
		parsers: sync.Pool{New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(language)
			return p
		}},
	}
}

func (e *Engine) Name() string { return "php" }

func (e *Engine) parse(ctx context.Context, content []byte) (*sitter.Tree, error) {
	p := e.parsers.Get().(*sitter.Parser)
	defer e.parsers.Put(p)
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return tree, nil
}

// Parse returns the top-level declarations of src. Sources with syntax
// errors still yield whatever declarations could be recovered.
func (e *Engine) Parse(ctx context.Context, src *analysis.Source) ([]symbols.Declaration, error) {
	if isBlank(src.Content) {
		return nil, nil
	}
	tree, err := e.parse(ctx, src.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	return declarations(tree.RootNode(), src), nil
}

// Analyze raises issues for src against the frozen table.
func (e *Engine) Analyze(ctx context.Context, src *analysis.Source, table *symbols.Table) ([]types.Issue, error) {
	if isBlank(src.Content) {
		return []types.Issue{analysis.Issue(src, CategoryEmptyFile, types.SeverityLow, 1,
			fmt.Sprintf("Empty file %s", src.RelPath))}, nil
	}
	tree, err := e.parse(ctx, src.Content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line, msg := syntaxError(root, src.Content)
		return []types.Issue{analysis.Issue(src, CategorySyntaxError, types.SeverityCritical, line, msg)}, nil
	}

	var issues []types.Issue
	issues = append(issues, redefinitions(declarations(root, src), table, src)...)

	c := &checker{src: src, table: table, quick: e.opts.Enabled("quick_mode")}
	eachStatement(root, src.Content, c.check)
	issues = append(issues, c.issues...)
	return issues, nil
}

func isBlank(content []byte) bool {
	return len(bytes.TrimSpace(content)) == 0
}

// scope is the namespace and class imports in effect for a statement.
type scope struct {
	ns   string
	uses map[string]string
}

func newScope(ns string) *scope {
	return &scope{ns: strings.Trim(ns, `\`), uses: make(map[string]string)}
}

// resolve returns the fully qualified form of a class-like name, or "" for
// self, static and parent.
func (s *scope) resolve(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, `\`) {
		return name[1:]
	}
	lower := strings.ToLower(name)
	switch lower {
	case "self", "static", "parent":
		return ""
	}
	if strings.HasPrefix(lower, `namespace\`) {
		return qualify(s.ns, name[len(`namespace\`):])
	}
	first, rest, nested := strings.Cut(name, `\`)
	if target, ok := s.uses[strings.ToLower(first)]; ok {
		if nested {
			return target + `\` + rest
		}
		return target
	}
	return qualify(s.ns, name)
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + `\` + name
}

// eachStatement calls fn for every top-level statement with the scope in
// effect, following both braced and unbraced namespace forms.
func eachStatement(root *sitter.Node, content []byte, fn func(n *sitter.Node, sc *scope)) {
	sc := newScope("")
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "namespace_definition":
			name := ""
			if nn := n.ChildByFieldName("name"); nn != nil {
				name = nn.Content(content)
			}
			body := n.ChildByFieldName("body")
			if body == nil {
				sc = newScope(name)
				continue
			}
			inner := newScope(name)
			for j := 0; j < int(body.NamedChildCount()); j++ {
				stmt := body.NamedChild(j)
				if stmt.Type() == "namespace_use_declaration" {
					addUses(inner, stmt, content)
					continue
				}
				fn(stmt, inner)
			}
		case "namespace_use_declaration":
			addUses(sc, n, content)
		default:
			fn(n, sc)
		}
	}
}

// addUses records class imports. Function and constant imports do not
// affect class name resolution and are ignored.
func addUses(sc *scope, decl *sitter.Node, content []byte) {
	if decl.ChildByFieldName("type") != nil {
		return
	}
	for i := 0; i < int(decl.ChildCount()); i++ {
		if t := decl.Child(i).Type(); t == "function" || t == "const" {
			return
		}
	}
	prefix := ""
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		n := decl.NamedChild(i)
		switch n.Type() {
		case "namespace_name":
			prefix = strings.Trim(n.Content(content), `\`)
		case "namespace_use_clause", "namespace_use_group_clause":
			addUseClause(sc, prefix, n, content)
		case "namespace_use_group":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				addUseClause(sc, prefix, n.NamedChild(j), content)
			}
		}
	}
}

func addUseClause(sc *scope, prefix string, clause *sitter.Node, content []byte) {
	var target, alias string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		n := clause.NamedChild(i)
		switch n.Type() {
		case "name", "qualified_name", "namespace_name":
			if target == "" {
				target = strings.Trim(n.Content(content), `\`)
			}
		case "namespace_aliasing_clause":
			if n.NamedChildCount() > 0 {
				alias = n.NamedChild(0).Content(content)
			}
		}
	}
	if a := clause.ChildByFieldName("alias"); a != nil {
		alias = a.Content(content)
	}
	if target == "" {
		return
	}
	if prefix != "" {
		target = prefix + `\` + target
	}
	if alias == "" {
		alias = target[strings.LastIndex(target, `\`)+1:]
	}
	sc.uses[strings.ToLower(alias)] = target
}

var declKinds = map[string]symbols.Kind{
	"class_declaration":     symbols.KindClass,
	"interface_declaration": symbols.KindInterface,
	"trait_declaration":     symbols.KindTrait,
	"enum_declaration":      symbols.KindEnum,
	"function_definition":   symbols.KindFunction,
}

// declarations extracts the top-level declarations of a parsed source.
// Declarations nested in conditionals or function bodies are not recorded.
func declarations(root *sitter.Node, src *analysis.Source) []symbols.Declaration {
	var out []symbols.Declaration
	eachStatement(root, src.Content, func(n *sitter.Node, sc *scope) {
		if kind, ok := declKinds[n.Type()]; ok {
			if name := n.ChildByFieldName("name"); name != nil {
				out = append(out, symbols.Declaration{
					Kind: kind,
					Name: qualify(sc.ns, name.Content(src.Content)),
					File: src.RelPath,
					Line: line(name),
				})
			}
			return
		}
		if n.Type() == "const_declaration" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				el := n.NamedChild(i)
				if el.Type() != "const_element" || el.NamedChildCount() == 0 {
					continue
				}
				name := el.NamedChild(0)
				out = append(out, symbols.Declaration{
					Kind: symbols.KindConstant,
					Name: qualify(sc.ns, name.Content(src.Content)),
					File: src.RelPath,
					Line: line(name),
				})
			}
		}
	})
	return out
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func redefinitions(decls []symbols.Declaration, table *symbols.Table, src *analysis.Source) []types.Issue {
	var issues []types.Issue
	for _, d := range decls {
		var category, label string
		switch d.Kind.Group() {
		case symbols.GroupClassLike:
			category, label = CategoryRedefineClass, "Class"
		case symbols.GroupFunction:
			category, label = CategoryRedefineFunction, "Function"
		default:
			continue
		}
		all := table.Declarations(d.Kind.Group(), d.Name)
		if len(all) < 2 || all[0] == d {
			continue
		}
		first := all[0]
		issues = append(issues, analysis.Issue(src, category, types.SeverityNormal, d.Line,
			fmt.Sprintf("%s \\%s defined at %s:%d was previously defined at %s:%d",
				label, d.Name, d.File, d.Line, first.File, first.Line)))
	}
	return issues
}

// syntaxError locates the first error or missing node.
func syntaxError(root *sitter.Node, content []byte) (int, string) {
	var found *sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	if found == nil {
		return 1, "syntax error"
	}
	if found.IsMissing() {
		return line(found), fmt.Sprintf("syntax error, missing %s", found.Type())
	}
	text := strings.TrimSpace(found.Content(content))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40]
	}
	return line(found), fmt.Sprintf("syntax error, unexpected '%s'", text)
}

// checker raises undeclared-name issues. Only namespaced names are checked:
// global names may be provided by PHP itself or its extensions.
type checker struct {
	src    *analysis.Source
	table  *symbols.Table
	quick  bool
	issues []types.Issue
}

func (c *checker) check(n *sitter.Node, sc *scope) {
	content := c.src.Content
	switch n.Type() {
	case "class_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "base_clause":
				c.names(child, sc, CategoryUndeclaredExtended, "Class extends undeclared class \\%s")
			case "class_interface_clause":
				c.names(child, sc, CategoryUndeclaredInterface, "Class implements undeclared interface \\%s")
			}
		}
	case "interface_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "base_clause" {
				c.names(child, sc, CategoryUndeclaredInterface, "Interface extends undeclared interface \\%s")
			}
		}
	}
	if c.quick {
		return
	}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "object_creation_expression" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if t := child.Type(); t == "name" || t == "qualified_name" {
					c.undeclared(child, sc.resolve(child.Content(content)), CategoryUndeclaredClassMethod,
						"Call to method __construct from undeclared class \\%s")
					break
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(n)
}

func (c *checker) names(clause *sitter.Node, sc *scope, category, format string) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		n := clause.NamedChild(i)
		if t := n.Type(); t == "name" || t == "qualified_name" {
			c.undeclared(n, sc.resolve(n.Content(c.src.Content)), category, format)
		}
	}
}

func (c *checker) undeclared(n *sitter.Node, fq, category, format string) {
	if fq == "" || !strings.Contains(fq, `\`) {
		return
	}
	if c.table.Has(symbols.GroupClassLike, fq) {
		return
	}
	c.issues = append(c.issues, analysis.Issue(c.src, category, Categories[category], line(n), fmt.Sprintf(format, fq)))
}
