package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/engine/source"
)

func declarationHandlers() map[string]NodeHandler {
	return map[string]NodeHandler{
		"namespace_definition":      handleNamespace,
		"namespace_use_declaration": handleUse,
		"class_declaration":         handleClassLike,
		"interface_declaration":     handleClassLike,
		"trait_declaration":         handleClassLike,
		"enum_declaration":          handleClassLike,
		"function_definition":       handleFunction,
		"const_declaration":         handleConst,
		"expression_statement":      handleDefine,
		// anonymous class bodies are not declarations
		"declaration_list": func(*ExtractionContext, *sitter.Node) bool { return true },
	}
}

var classKinds = map[string]source.ClassKind{
	"class_declaration":     source.KindClass,
	"interface_declaration": source.KindInterface,
	"trait_declaration":     source.KindTrait,
	"enum_declaration":      source.KindEnum,
}

// handleNamespace opens a namespace. Braced and unbraced forms cannot be
// mixed in one file, so the walker simply continues with the new namespace
// as the declaration target.
func handleNamespace(ctx *ExtractionContext, node *sitter.Node) bool {
	ns := &source.Namespace{
		Position: ctx.Position(node),
		Name:     strings.TrimPrefix(ctx.Name(node.ChildByFieldName("name")), `\`),
	}
	ctx.File.Namespaces = append(ctx.File.Namespaces, ns)
	ctx.Namespace = ns
	return false
}

func handleUse(ctx *ExtractionContext, node *sitter.Node) bool {
	kind := useKind(ctx, node, source.UseClass)
	if group := childOfKind(node, "namespace_use_group"); group != nil {
		prefix := ctx.Name(childOfKind(node, "namespace_name", "qualified_name", "name"))
		for _, clause := range childrenOfKind(group, "namespace_use_clause", "namespace_use_group_clause") {
			addUseClause(ctx, clause, kind, prefix)
		}
		return true
	}
	for _, clause := range childrenOfKind(node, "namespace_use_clause") {
		addUseClause(ctx, clause, kind, "")
	}
	return true
}

func useKind(ctx *ExtractionContext, node *sitter.Node, fallback source.UseKind) source.UseKind {
	switch {
	case ctx.hasToken(node, "function"):
		return source.UseFunction
	case ctx.hasToken(node, "const"):
		return source.UseConstant
	}
	return fallback
}

func addUseClause(ctx *ExtractionContext, clause *sitter.Node, kind source.UseKind, prefix string) {
	names := childrenOfKind(clause, "name", "qualified_name", "namespace_name")
	if len(names) == 0 {
		return
	}
	alias := ""
	switch {
	case clause.ChildByFieldName("alias") != nil:
		alias = ctx.Name(clause.ChildByFieldName("alias"))
	case childOfKind(clause, "namespace_aliasing_clause") != nil:
		alias = ctx.ChildText(childOfKind(clause, "namespace_aliasing_clause"), "name")
	case len(names) > 1 && ctx.hasToken(clause, "as"):
		alias = ctx.Name(names[len(names)-1])
	}
	name := strings.TrimPrefix(ctx.Name(names[0]), `\`)
	if prefix != "" {
		name = strings.TrimPrefix(prefix, `\`) + `\` + name
	}
	ctx.Namespace.Uses = append(ctx.Namespace.Uses, &source.UseImport{
		Position: ctx.Position(clause),
		Kind:     useKind(ctx, clause, kind),
		Name:     name,
		Alias:    alias,
	})
}

func handleClassLike(ctx *ExtractionContext, node *sitter.Node) bool {
	cl := &source.ClassLike{
		Position:   ctx.Position(node),
		Kind:       classKinds[node.Kind()],
		Name:       ctx.Name(node.ChildByFieldName("name")),
		Modifiers:  ctx.modifiers(node),
		Attributes: ctx.attributes(node),
		DocComment: ctx.DocComment(node),
	}
	if base := childOfKind(node, "base_clause"); base != nil {
		cl.Extends = ctx.nameList(base)
	}
	if impl := childOfKind(node, "class_interface_clause"); impl != nil {
		cl.Implements = ctx.nameList(impl)
	}
	if cl.Kind == source.KindEnum {
		cl.BackingType = ctx.enumBackingType(node)
		if name := node.ChildByFieldName("name"); name != nil {
			if line, ok := ctx.unsupportedEnums[name.StartByte()]; ok {
				cl.Unsupported = fmt.Sprintf("enum constant declaration on line %d is not supported", line)
			}
		}
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		body = childOfKind(node, "declaration_list", "enum_declaration_list")
	}
	ctx.classBody(cl, body)
	ctx.Namespace.Classes = append(ctx.Namespace.Classes, cl)
	return true
}

func (c *ExtractionContext) nameList(node *sitter.Node) []string {
	var out []string
	for _, n := range childrenOfKind(node, "name", "qualified_name", "relative_name") {
		out = append(out, c.Name(n))
	}
	return out
}

// enumBackingType reads the type following ':' in `enum Suit: string`.
func (c *ExtractionContext) enumBackingType(node *sitter.Node) source.TypeExpr {
	colon := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !child.IsNamed() && c.Text(child) == ":" {
			colon = true
			continue
		}
		if colon && child.IsNamed() {
			return c.Type(child)
		}
	}
	return nil
}

func (c *ExtractionContext) classBody(cl *source.ClassLike, body *sitter.Node) {
	for _, m := range namedChildren(body) {
		switch m.Kind() {
		case "const_declaration":
			cl.Constants = append(cl.Constants, c.classConstants(m)...)
		case "property_declaration":
			cl.Properties = append(cl.Properties, c.properties(m)...)
		case "method_declaration":
			method := c.method(m)
			cl.Methods = append(cl.Methods, method)
			if strings.EqualFold(method.Name, "__construct") {
				cl.Properties = append(cl.Properties, promotedProperties(method)...)
			}
		case "use_declaration":
			cl.TraitUses = append(cl.TraitUses, c.traitUse(m))
		case "enum_case":
			if name := m.ChildByFieldName("name"); name != nil && c.enumConsts[name.StartByte()] != nil {
				cl.Constants = append(cl.Constants, c.enumConstant(m, name))
				continue
			}
			cl.Cases = append(cl.Cases, &source.EnumCase{
				Position:   c.Position(m),
				Name:       c.Name(m.ChildByFieldName("name")),
				Value:      c.caseValue(m),
				Attributes: c.attributes(m),
				DocComment: c.DocComment(m),
			})
		}
	}
}

// enumConstant converts a constant that was parsed in case form.
func (c *ExtractionContext) enumConstant(node, name *sitter.Node) *source.ClassConst {
	ec := c.enumConsts[name.StartByte()]
	pos, at := c.Position(node), c.Position(name)
	pos.Line, pos.Column, pos.StartByte = at.Line, at.Column, at.StartByte
	return &source.ClassConst{
		Position:   pos,
		Name:       c.Name(name),
		Modifiers:  ec.mods,
		Type:       ec.typ,
		Value:      c.caseValue(node),
		Attributes: c.attributes(node),
		DocComment: c.DocComment(node),
	}
}

func (c *ExtractionContext) caseValue(node *sitter.Node) source.Expr {
	if v := node.ChildByFieldName("value"); v != nil {
		return c.Expr(v)
	}
	if !c.hasToken(node, "=") {
		return nil
	}
	parts := namedChildren(node)
	return c.Expr(parts[len(parts)-1])
}

func (c *ExtractionContext) classConstants(node *sitter.Node) []*source.ClassConst {
	mods := c.modifiers(node)
	typ := c.Type(node.ChildByFieldName("type"))
	attrs := c.attributes(node)
	doc := c.DocComment(node)
	var out []*source.ClassConst
	for _, el := range childrenOfKind(node, "const_element") {
		parts := namedChildren(el)
		if len(parts) < 2 {
			continue
		}
		out = append(out, &source.ClassConst{
			Position:   c.Position(el),
			Name:       c.Name(parts[0]),
			Modifiers:  mods,
			Type:       typ,
			Value:      c.Expr(parts[len(parts)-1]),
			Attributes: attrs,
			DocComment: doc,
		})
	}
	return out
}

func (c *ExtractionContext) properties(node *sitter.Node) []*source.Property {
	mods := c.modifiers(node)
	typ := c.Type(node.ChildByFieldName("type"))
	attrs := c.attributes(node)
	doc := c.DocComment(node)
	var out []*source.Property
	for _, el := range childrenOfKind(node, "property_element") {
		prop := &source.Property{
			Position:   c.Position(el),
			Name:       variableName(c, el),
			Modifiers:  mods,
			Type:       typ,
			Attributes: attrs,
			DocComment: doc,
		}
		if def := el.ChildByFieldName("default_value"); def != nil {
			prop.Default = c.Expr(def)
		} else if init := childOfKind(el, "property_initializer"); init != nil {
			if parts := namedChildren(init); len(parts) > 0 {
				prop.Default = c.Expr(parts[0])
			}
		}
		out = append(out, prop)
	}
	return out
}

func (c *ExtractionContext) method(node *sitter.Node) *source.Method {
	body := node.ChildByFieldName("body")
	hasBody := body != nil && body.Kind() == "compound_statement"
	return &source.Method{
		Position:   c.Position(node),
		Name:       c.Name(node.ChildByFieldName("name")),
		Modifiers:  c.modifiers(node),
		Params:     c.Params(node.ChildByFieldName("parameters")),
		ReturnType: c.Type(node.ChildByFieldName("return_type")),
		ByRef:      childOfKind(node, "reference_modifier") != nil,
		Attributes: c.attributes(node),
		DocComment: c.DocComment(node),
		HasBody:    hasBody,
		Generator:  hasBody && containsYield(body),
	}
}

func promotedProperties(ctor *source.Method) []*source.Property {
	var out []*source.Property
	for _, p := range ctor.Params {
		if p.Promoted == 0 {
			continue
		}
		out = append(out, &source.Property{
			Position:   p.Position,
			Name:       p.Name,
			Modifiers:  p.Promoted,
			Type:       p.Type,
			Attributes: p.Attributes,
			Promoted:   true,
		})
	}
	return out
}

func handleFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	body := node.ChildByFieldName("body")
	ctx.Namespace.Functions = append(ctx.Namespace.Functions, &source.Function{
		Position:   ctx.Position(node),
		Name:       ctx.Name(node.ChildByFieldName("name")),
		Params:     ctx.Params(node.ChildByFieldName("parameters")),
		ReturnType: ctx.Type(node.ChildByFieldName("return_type")),
		ByRef:      childOfKind(node, "reference_modifier") != nil,
		Attributes: ctx.attributes(node),
		DocComment: ctx.DocComment(node),
		Generator:  containsYield(body),
	})
	return true
}

func handleConst(ctx *ExtractionContext, node *sitter.Node) bool {
	doc := ctx.DocComment(node)
	for _, el := range childrenOfKind(node, "const_element") {
		parts := namedChildren(el)
		if len(parts) < 2 {
			continue
		}
		ctx.Namespace.Constants = append(ctx.Namespace.Constants, &source.ConstDecl{
			Position:   ctx.Position(el),
			Name:       ctx.Name(parts[0]),
			Value:      ctx.Expr(parts[len(parts)-1]),
			DocComment: doc,
		})
	}
	return true
}

// handleDefine collects `define('NAME', expr);` statements.
func handleDefine(ctx *ExtractionContext, node *sitter.Node) bool {
	parts := namedChildren(node)
	if len(parts) == 0 || parts[0].Kind() != "function_call_expression" {
		return true
	}
	call, ok := ctx.Expr(parts[0]).(*source.Call)
	if ok && strings.EqualFold(strings.TrimPrefix(call.Name, `\`), "define") {
		ctx.Namespace.Defines = append(ctx.Namespace.Defines, call)
	}
	return true
}

func (c *ExtractionContext) traitUse(node *sitter.Node) *source.TraitUse {
	use := &source.TraitUse{Position: c.Position(node), Traits: c.nameList(node)}
	for _, clause := range namedChildren(childOfKind(node, "use_list")) {
		parts := namedChildren(clause)
		if len(parts) == 0 {
			continue
		}
		ad := &source.TraitAdaptation{Position: c.Position(clause)}
		ad.Trait, ad.Method = c.memberRef(parts[0])
		switch clause.Kind() {
		case "use_instead_of_clause":
			for _, n := range parts[1:] {
				ad.Insteadof = append(ad.Insteadof, c.Name(n))
			}
		case "use_as_clause":
			for _, n := range parts[1:] {
				switch n.Kind() {
				case "visibility_modifier":
					ad.Visibility = visibilityOf(c.Text(n))
				default:
					ad.Alias = c.Name(n)
				}
			}
		default:
			continue
		}
		use.Adaptations = append(use.Adaptations, ad)
	}
	return use
}

// memberRef splits `Trait::method` or a bare `method`.
func (c *ExtractionContext) memberRef(node *sitter.Node) (trait, method string) {
	if node.Kind() != "class_constant_access_expression" {
		return "", c.Name(node)
	}
	parts := namedChildren(node)
	if len(parts) < 2 {
		return "", c.Name(node)
	}
	return c.Name(parts[0]), c.Name(parts[len(parts)-1])
}

func visibilityOf(text string) source.Modifier {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "private":
		return source.ModPrivate
	case "protected":
		return source.ModProtected
	default:
		return source.ModPublic
	}
}

// modifiers collects the *_modifier children of a declaration.
func (c *ExtractionContext) modifiers(node *sitter.Node) source.Modifier {
	var mods source.Modifier
	if node == nil {
		return mods
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "visibility_modifier":
			mods = mods.WithVisibility(visibilityOf(c.Text(child)))
		case "var_modifier":
			mods = mods.WithVisibility(source.ModPublic)
		case "static_modifier":
			mods |= source.ModStatic
		case "abstract_modifier":
			mods |= source.ModAbstract
		case "final_modifier":
			mods |= source.ModFinal
		case "readonly_modifier":
			mods |= source.ModReadonly
		case "class_modifier":
			switch strings.ToLower(c.Text(child)) {
			case "abstract":
				mods |= source.ModAbstract
			case "final":
				mods |= source.ModFinal
			case "readonly":
				mods |= source.ModReadonly
			}
		}
	}
	return mods
}

func (c *ExtractionContext) attributes(node *sitter.Node) []*source.Attribute {
	var out []*source.Attribute
	for _, list := range childrenOfKind(node, "attribute_list") {
		for _, group := range childrenOfKind(list, "attribute_group") {
			for _, attr := range childrenOfKind(group, "attribute") {
				a := &source.Attribute{
					Position: c.Position(attr),
					Name:     c.Name(childOfKind(attr, "name", "qualified_name", "relative_name")),
				}
				args := attr.ChildByFieldName("parameters")
				if args == nil {
					args = childOfKind(attr, "arguments")
				}
				a.Args = c.Arguments(args)
				out = append(out, a)
			}
		}
	}
	return out
}

// Params reads a formal_parameters list.
func (c *ExtractionContext) Params(node *sitter.Node) []*source.Param {
	var out []*source.Param
	for _, p := range namedChildren(node) {
		param := &source.Param{
			Position:   c.Position(p),
			Type:       c.Type(p.ChildByFieldName("type")),
			Attributes: c.attributes(p),
		}
		switch p.Kind() {
		case "simple_parameter":
		case "variadic_parameter":
			param.Variadic = true
		case "property_promotion_parameter":
			mods := c.modifiers(p)
			param.Promoted = mods.WithVisibility(mods.Visibility())
			if vis := p.ChildByFieldName("visibility"); vis != nil {
				param.Promoted = param.Promoted.WithVisibility(visibilityOf(c.Text(vis)))
			}
		default:
			continue
		}
		name := p.ChildByFieldName("name")
		if name != nil && name.Kind() == "by_ref" {
			param.ByRef = true
			name = childOfKind(name, "variable_name")
		}
		if name == nil {
			name = childOfKind(p, "variable_name")
		}
		param.Name = strings.TrimPrefix(c.Name(name), "$")
		if childOfKind(p, "reference_modifier") != nil || p.ChildByFieldName("reference_modifier") != nil {
			param.ByRef = true
		}
		if def := p.ChildByFieldName("default_value"); def != nil {
			param.Default = c.Expr(def)
		}
		out = append(out, param)
	}
	return out
}

func variableName(c *ExtractionContext, node *sitter.Node) string {
	name := node.ChildByFieldName("name")
	if name == nil {
		name = childOfKind(node, "variable_name")
	}
	return strings.TrimPrefix(c.Name(name), "$")
}

// containsYield reports a yield in body, ignoring nested closures and classes.
func containsYield(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Kind() {
	case "yield_expression":
		return true
	case "anonymous_function", "anonymous_function_creation_expression", "arrow_function", "declaration_list":
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if containsYield(node.Child(i)) {
			return true
		}
	}
	return false
}
