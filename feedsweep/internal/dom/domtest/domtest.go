// Package domtest is an in-memory dom.Document built from an HTML fixture.
// Geometry comes from a data-rect="top,left,bottom,right" attribute; clicks
// are recorded and can trigger handlers that rewrite the fixture, which is how
// tests simulate menus opening and toasts appearing.
package domtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
)

// DefaultRect is used for elements without a data-rect attribute. It lies
// inside DefaultViewport.
var DefaultRect = dom.Rect{Top: 10, Left: 0, Bottom: 110, Right: 600}

// DefaultViewport is the fixture window size.
var DefaultViewport = dom.Viewport{Width: 1280, Height: 800}

type clickHandler struct {
	selector string
	fn       func()
}

// Document is a fixture document. It is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	doc      *goquery.Document
	url      string
	vp       dom.Viewport
	ids      map[*html.Node]dom.NodeID
	next     dom.NodeID
	handlers []clickHandler
	clicked  []*html.Node
}

// Parse builds a Document at url from an HTML fragment or page.
func Parse(url, src string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("domtest: parse: %w", err)
	}
	return &Document{
		doc: doc,
		url: url,
		vp:  DefaultViewport,
		ids: make(map[*html.Node]dom.NodeID),
	}, nil
}

// MustParse is Parse for fixtures known to be valid.
func MustParse(url, src string) *Document {
	d, err := Parse(url, src)
	if err != nil {
		panic(err)
	}
	return d
}

// SetURL changes the document location.
func (d *Document) SetURL(u string) {
	d.mu.Lock()
	d.url = u
	d.mu.Unlock()
}

// OnClick registers fn to run after any element matching selector is
// clicked. Handlers run outside the document lock and may mutate it.
func (d *Document) OnClick(selector string, fn func()) {
	d.mu.Lock()
	d.handlers = append(d.handlers, clickHandler{selector: selector, fn: fn})
	d.mu.Unlock()
}

// Append parses src and appends it to the first element matching
// parentSelector. It returns the inserted top-level elements.
func (d *Document) Append(parentSelector, src string) []dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := d.doc.Find(parentSelector).First()
	if parent.Length() == 0 {
		return nil
	}
	pn := parent.Nodes[0]
	last := pn.LastChild
	parent.AppendHtml(src)

	start := pn.FirstChild
	if last != nil {
		start = last.NextSibling
	}
	var out []dom.Element
	for n := start; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			out = append(out, d.wrapLocked(n))
		}
	}
	return out
}

// Remove detaches every element matching selector.
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	d.doc.Find(selector).Remove()
	d.mu.Unlock()
}

// Count returns how many elements currently match selector.
func (d *Document) Count(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Length()
}

// Element returns the first element matching selector, or nil.
func (d *Document) Element(selector string) dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector)
	if sel.Length() == 0 {
		return nil
	}
	return d.wrapLocked(sel.Nodes[0])
}

// ClickCount returns how many recorded clicks hit an element matching
// selector, detached elements included.
func (d *Document) ClickCount(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, node := range d.clicked {
		if goquery.NewDocumentFromNode(node).Selection.Is(selector) {
			n++
		}
	}
	return n
}

// Clicks returns the total number of recorded clicks.
func (d *Document) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clicked)
}

// Hidden reports whether the first element matching selector carries an
// inline display:none.
func (d *Document) Hidden(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	style, _ := sel.Attr("style")
	return parseStyle(style).Display == "none"
}

func (d *Document) URL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Document) Viewport(context.Context) (dom.Viewport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vp, nil
}

func (d *Document) Query(_ context.Context, selector string) (dom.Element, error) {
	return d.Element(selector), nil
}

func (d *Document) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrapAllLocked(d.doc.Find(selector)), nil
}

func (d *Document) ElementFromPoint(_ context.Context, x, y float64) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var hit *html.Node
	d.doc.Find("[data-rect]").Each(func(_ int, s *goquery.Selection) {
		r := rectOf(s.Nodes[0])
		if x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom {
			hit = s.Nodes[0]
		}
	})
	if hit == nil {
		return nil, nil
	}
	return d.wrapLocked(hit), nil
}

func (d *Document) wrapLocked(n *html.Node) *Element {
	id, ok := d.ids[n]
	if !ok {
		d.next++
		id = d.next
		d.ids[n] = id
	}
	return &Element{doc: d, node: n, id: id}
}

func (d *Document) wrapAllLocked(sel *goquery.Selection) []dom.Element {
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.wrapLocked(n))
	}
	return out
}

func (d *Document) attachedLocked(n *html.Node) bool {
	root := d.doc.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Element is a fixture node.
type Element struct {
	doc  *Document
	node *html.Node
	id   dom.NodeID
}

func (e *Element) ID() dom.NodeID { return e.id }

func (e *Element) sel() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

func (e *Element) Text(context.Context) (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var b strings.Builder
	renderText(&b, e.node)
	return b.String(), nil
}

// renderText approximates innerText: indentation-only text nodes are dropped
// and <br> becomes a line break.
func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && strings.Contains(n.Data, "\n") {
			return
		}
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
}

func (e *Element) Attr(_ context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *Element) Query(_ context.Context, selector string) (dom.Element, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	found := e.sel().Find(selector)
	if found.Length() == 0 {
		return nil, nil
	}
	return e.doc.wrapLocked(found.Nodes[0]), nil
}

func (e *Element) QueryAll(_ context.Context, selector string) ([]dom.Element, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.wrapAllLocked(e.sel().Find(selector)), nil
}

func (e *Element) Rect(context.Context) (dom.Rect, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.attachedLocked(e.node) {
		return dom.Rect{}, dom.ErrDetached
	}
	return rectOf(e.node), nil
}

func (e *Element) Parent(context.Context) (dom.Element, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return e.doc.wrapLocked(p), nil
}

func (e *Element) Contains(_ context.Context, other dom.Element) (bool, error) {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false, nil
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for p := o.node; p != nil; p = p.Parent {
		if p == e.node {
			return true, nil
		}
	}
	return false, nil
}

func (e *Element) Click(context.Context) error {
	d := e.doc
	d.mu.Lock()
	if !d.attachedLocked(e.node) {
		d.mu.Unlock()
		return dom.ErrDetached
	}
	d.clicked = append(d.clicked, e.node)
	var fire []func()
	for _, h := range d.handlers {
		if e.sel().Is(h.selector) {
			fire = append(fire, h.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return nil
}

func (e *Element) Hide(context.Context) (dom.Style, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	prev := parseStyle(attr(e.node, "style"))
	setAttr(e.node, "style", "display: none; visibility: "+prev.Visibility)
	return prev, nil
}

func (e *Element) Restore(_ context.Context, s dom.Style) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, "style", "display: "+s.Display+"; visibility: "+s.Visibility)
	return nil
}

func rectOf(n *html.Node) dom.Rect {
	raw := attr(n, "data-rect")
	if raw == "" {
		return DefaultRect
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return DefaultRect
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return DefaultRect
		}
		v[i] = f
	}
	return dom.Rect{Top: v[0], Left: v[1], Bottom: v[2], Right: v[3]}
}

func parseStyle(s string) dom.Style {
	st := dom.Style{Display: "block", Visibility: "visible"}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "display":
			st.Display = strings.TrimSpace(v)
		case "visibility":
			st.Visibility = strings.TrimSpace(v)
		}
	}
	return st
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
