package parser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/core/errors"
	"staticreflect/internal/engine/source"
	"staticreflect/internal/shared/observability"
)

// Parser turns PHP source into the source model. It is safe for concurrent
// use; tree-sitter parsers are leased from a pool per call.
type Parser struct {
	pool       *ParserPool
	engine     *ExtractorEngine
	extensions map[string]bool
}

func NewParser() *Parser {
	p := &Parser{
		pool:       NewParserPool(PHPLanguage()),
		extensions: make(map[string]bool, len(Extensions)),
	}
	for _, ext := range Extensions {
		p.extensions[ext] = true
	}
	p.engine = NewExtractorEngine(declarationHandlers())
	return p
}

// ParseFile parses content as the file at path. Syntax errors do not fail the
// parse: tree-sitter recovers, whatever declarations survive are kept and
// the first error is logged. Enums whose constants cannot be modelled are
// marked unsupported rather than truncated.
func (p *Parser) ParseFile(path string, content []byte) (*source.File, error) {
	if !p.IsSupportedPath(path) {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported language"), errors.CtxPath, path)
	}

	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(languagePHP).Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	patch := rewriteEnumConstants(content)
	constTypes(sp, patch)

	tree := sp.Parse(patch.content, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}
	defer tree.Close()
	if root := tree.RootNode(); root.HasError() {
		if bad := firstError(root); bad != nil {
			slog.Warn("syntax error in PHP source", "path", path, "line", bad.StartPosition().Row+1)
		}
	}

	file := &source.File{Path: path, Source: content}
	global := &source.Namespace{}
	file.Namespaces = append(file.Namespaces, global)
	ctx := &ExtractionContext{
		Source:           content,
		File:             file,
		Namespace:        global,
		enumConsts:       patch.consts,
		unsupportedEnums: patch.unsupported,
	}

	if err := p.extract(ctx, tree.RootNode()); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "extraction failed"), errors.CtxPath, path)
	}
	pruneEmptyGlobal(file)
	return file, nil
}

func (p *Parser) extract(ctx *ExtractionContext, root *sitter.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while extracting declarations: %v", r)
		}
	}()
	p.engine.Walk(ctx, root)
	return nil
}

// constTypes parses the type annotations of rewritten enum constants.
func constTypes(sp *sitter.Parser, patch *enumPatch) {
	for _, ec := range patch.consts {
		if ec.typeText == "" {
			continue
		}
		snippet := []byte("<?php function f(): " + ec.typeText + " {}")
		tree := sp.Parse(snippet, nil)
		if tree == nil {
			continue
		}
		ctx := &ExtractionContext{Source: snippet}
		if fn := childOfKind(tree.RootNode(), "function_definition"); fn != nil {
			ec.typ = ctx.Type(fn.ChildByFieldName("return_type"))
		}
		tree.Close()
	}
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

// pruneEmptyGlobal drops the implicit global namespace when the file declares
// named namespaces and nothing lives outside them.
func pruneEmptyGlobal(file *source.File) {
	if len(file.Namespaces) < 2 {
		return
	}
	g := file.Namespaces[0]
	if len(g.Uses)+len(g.Classes)+len(g.Functions)+len(g.Constants)+len(g.Defines) == 0 {
		file.Namespaces = file.Namespaces[1:]
	}
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Parser) SupportedExtensions() []string {
	out := make([]string, 0, len(p.extensions))
	for ext := range p.extensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}
