package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"staticreflect/internal/engine/source"
)

// NodeHandler processes a node for the declaration extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state/helpers used by all handlers.
type ExtractionContext struct {
	Source            []byte
	File              *source.File
	Namespace         *source.Namespace // namespace receiving declarations
	ProcessedChildren bool              // If true, the walker will skip this node's children

	enumConsts       map[uint]*enumConst
	unsupportedEnums map[uint]int
}

func (c *ExtractionContext) ResetProcessedChildren() {
	c.ProcessedChildren = false
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	ctx.ResetProcessedChildren()
	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}

	if !stop && !ctx.ProcessedChildren {
		for i := uint(0); i < node.ChildCount(); i++ {
			e.Walk(ctx, node.Child(i))
		}
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// Name returns the text of a name-like node with insignificant whitespace
// removed, so `Foo \ Bar` reads as `Foo\Bar`.
func (c *ExtractionContext) Name(node *sitter.Node) string {
	return strings.Join(strings.Fields(c.Text(node)), "")
}

func (c *ExtractionContext) Position(node *sitter.Node) source.Position {
	if node == nil {
		return source.Position{}
	}
	return source.Position{
		Line:      int(node.StartPosition().Row) + 1,
		Column:    int(node.StartPosition().Column) + 1,
		EndLine:   int(node.EndPosition().Row) + 1,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
	}
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	return c.Text(childOfKind(node, kind))
}

// DocComment returns the `/** */` block directly preceding node.
func (c *ExtractionContext) DocComment(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	prev := node.PrevNamedSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := c.Text(prev)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return text
}

func childOfKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				return child
			}
		}
	}
	return nil
}

func childrenOfKind(node *sitter.Node, kinds ...string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, kind := range kinds {
			if child.Kind() == kind {
				out = append(out, child)
				break
			}
		}
	}
	return out
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// hasToken reports whether node has a direct anonymous child spelled tok.
func (c *ExtractionContext) hasToken(node *sitter.Node, tok string) bool {
	if node == nil {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && !child.IsNamed() && strings.EqualFold(c.Text(child), tok) {
			return true
		}
	}
	return false
}
