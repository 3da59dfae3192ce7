package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// LocatorKind selects how a Locator value is interpreted
type LocatorKind string

const (
	ByCSS   LocatorKind = "css"
	ByClass LocatorKind = "class"
	ByID    LocatorKind = "id"
	ByTag   LocatorKind = "tag"
	ByText  LocatorKind = "text"
)

// Locator is one lookup strategy. When Attr is set the attribute value is
// the result instead of the element text.
type Locator struct {
	Kind  LocatorKind
	Value string
	Attr  string
}

func CSS(sel string) Locator    { return Locator{Kind: ByCSS, Value: sel} }
func Class(name string) Locator { return Locator{Kind: ByClass, Value: name} }
func ID(id string) Locator      { return Locator{Kind: ByID, Value: id} }
func Tag(name string) Locator   { return Locator{Kind: ByTag, Value: name} }
func Text(s string) Locator     { return Locator{Kind: ByText, Value: s} }

// WithAttr returns a copy of l that reads the named attribute
func (l Locator) WithAttr(name string) Locator {
	l.Attr = name
	return l
}

func (l Locator) String() string {
	if l.Attr != "" {
		return fmt.Sprintf("%s(%s)@%s", l.Kind, l.Value, l.Attr)
	}
	return fmt.Sprintf("%s(%s)", l.Kind, l.Value)
}

// Chain is an ordered list of alternative locators for one logical field
type Chain []Locator

// CSSChain builds a chain of css locators
func CSSChain(selectors ...string) Chain {
	c := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		c = append(c, CSS(s))
	}
	return c
}

// WithAttr returns a copy of the chain where every locator reads attr
func (c Chain) WithAttr(attr string) Chain {
	out := make(Chain, len(c))
	for i, l := range c {
		out[i] = l.WithAttr(attr)
	}
	return out
}

// Element is the DOM access capability extraction is written against.
// Implementations backed by a live page return domain.ErrStaleReference
// once the element is detached.
type Element interface {
	Find(loc Locator) ([]Element, error)
	Text() (string, error)
	Attr(name string) (string, bool, error)
	Visible() (bool, error)
}

// Document is an immutable snapshot of a rendered page
type Document struct {
	node
	doc   *goquery.Document
	url   *url.URL
	html  string
	title string
}

// NewDocument parses rendered HTML captured from pageURL
func NewDocument(rawHTML, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	return &Document{
		node:  node{sel: doc.Selection},
		doc:   doc,
		url:   u,
		html:  rawHTML,
		title: CleanText(doc.Find("title").First().Text()),
	}, nil
}

// URL returns the address the snapshot was taken at
func (d *Document) URL() string { return d.url.String() }

// Title returns the cleaned <title> text
func (d *Document) Title() string { return d.title }

// HTML returns the raw markup the snapshot was built from
func (d *Document) HTML() string { return d.html }

// VisibleText returns the cleaned text a reader would see
func (d *Document) VisibleText() string {
	t, _ := d.node.Text()
	return t
}

// Exists reports whether any locator in chain matches at least one element
func (d *Document) Exists(chain Chain) bool {
	for _, loc := range chain {
		els, err := d.Find(loc)
		if err == nil && len(els) > 0 {
			return true
		}
	}
	return false
}

// AbsoluteURL resolves ref against base, returning ref unchanged when it
// cannot be parsed
func AbsoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return r.String()
	}
	return base.ResolveReference(r).String()
}

// node adapts a goquery selection to Element. Snapshots never go stale.
type node struct {
	sel *goquery.Selection
}

func (n node) Find(loc Locator) ([]Element, error) {
	var found *goquery.Selection

	switch loc.Kind {
	case ByCSS, ByTag:
		found = n.sel.Find(loc.Value)
	case ByClass:
		found = n.sel.Find(classSelector(loc.Value))
	case ByID:
		found = n.sel.Find(fmt.Sprintf("[id=%q]", loc.Value))
	case ByText:
		found = containingText(n.sel, loc.Value)
	default:
		return nil, fmt.Errorf("unknown locator kind %q", loc.Kind)
	}

	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out, nil
}

func (n node) Text() (string, error) {
	var b strings.Builder
	for _, nd := range n.sel.Nodes {
		writeVisibleText(&b, nd)
	}
	return CleanText(b.String()), nil
}

func (n node) Attr(name string) (string, bool, error) {
	v, ok := n.sel.Attr(name)
	return strings.TrimSpace(v), ok, nil
}

func (n node) Visible() (bool, error) {
	if len(n.sel.Nodes) == 0 {
		return false, nil
	}
	for nd := n.sel.Nodes[0]; nd != nil; nd = nd.Parent {
		if nd.Type == html.ElementNode && hiddenNode(nd) {
			return false, nil
		}
	}
	return true, nil
}

func classSelector(names string) string {
	parts := strings.Fields(names)
	return "." + strings.Join(parts, ".")
}

// containingText returns the innermost elements whose text contains s
func containingText(scope *goquery.Selection, s string) *goquery.Selection {
	needle := strings.ToLower(CleanText(s))
	matches := func(sel *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(CleanText(sel.Text())), needle)
	}
	return scope.Find("*").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		if skipTags[goquery.NodeName(sel)] || !matches(sel) {
			return false
		}
		inner := false
		sel.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			inner = matches(child)
			return !inner
		})
		return !inner
	})
}

var skipTags = map[string]bool{
	"script": true, "style": true, "template": true, "noscript": true, "head": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "section": true, "article": true,
	"header": true, "footer": true, "dd": true, "dt": true, "title": true,
}

// hiddenNode applies the snapshot visibility heuristic to one element
func hiddenNode(nd *html.Node) bool {
	if skipTags[nd.Data] {
		return true
	}
	for _, a := range nd.Attr {
		v := strings.ToLower(strings.TrimSpace(a.Val))
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if v == "true" {
				return true
			}
		case "type":
			if nd.Data == "input" && v == "hidden" {
				return true
			}
		case "style":
			compact := strings.ReplaceAll(v, " ", "")
			if strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden") {
				return true
			}
		case "class":
			for _, c := range strings.Fields(v) {
				if c == "d-none" || c == "hidden" {
					return true
				}
			}
		}
	}
	return false
}

func writeVisibleText(b *strings.Builder, nd *html.Node) {
	switch nd.Type {
	case html.TextNode:
		b.WriteString(nd.Data)
		return
	case html.ElementNode:
		if hiddenNode(nd) {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	block := nd.Type == html.ElementNode && blockTags[nd.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := nd.FirstChild; c != nil; c = c.NextSibling {
		writeVisibleText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

// CleanText NFKC-normalizes s and collapses runs of whitespace.
// Non-breaking spaces become plain spaces.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
