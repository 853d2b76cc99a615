// CLAUDE:SUMMARY go-rod implementation of the dom interfaces: page queries, geometry and synthetic clicks over CDP.
// Package roddom adapts a go-rod page to the dom interfaces.
package roddom

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/feedsweep/feedsweep/internal/dom"
)

// Document wraps a rod page.
type Document struct {
	page *rod.Page
}

// New returns a Document backed by page.
func New(page *rod.Page) *Document {
	return &Document{page: page}
}

// Page exposes the underlying rod page.
func (d *Document) Page() *rod.Page { return d.page }

func (d *Document) URL(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", fmt.Errorf("roddom: location: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *Document) Viewport(ctx context.Context) (dom.Viewport, error) {
	res, err := d.page.Context(ctx).Eval(`() => ({
		width: window.innerWidth || document.documentElement.clientWidth,
		height: window.innerHeight || document.documentElement.clientHeight,
	})`)
	if err != nil {
		return dom.Viewport{}, fmt.Errorf("roddom: viewport: %w", err)
	}
	return dom.Viewport{
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}, nil
}

func (d *Document) Query(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := d.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return wrap(ctx, d.page, el)
}

func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := d.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query all %q: %w", selector, err)
	}
	return wrapAll(ctx, d.page, els)
}

func (d *Document) ElementFromPoint(ctx context.Context, x, y float64) (dom.Element, error) {
	el, err := d.page.Context(ctx).ElementFromPoint(int(x), int(y))
	if err != nil {
		return nil, fmt.Errorf("roddom: element at %.0f,%.0f: %w", x, y, err)
	}
	if el == nil {
		return nil, nil
	}
	return wrap(ctx, d.page, el)
}

// ElementsByJS evaluates js, which must return an array of elements, and
// wraps the result. The observer uses it to collect inserted nodes.
func (d *Document) ElementsByJS(ctx context.Context, js string) ([]dom.Element, error) {
	els, err := d.page.Context(ctx).ElementsByJS(rod.Eval(js))
	if err != nil {
		return nil, fmt.Errorf("roddom: elements by js: %w", err)
	}
	return wrapAll(ctx, d.page, els)
}

// Element wraps a rod element together with its backend node id.
type Element struct {
	page *rod.Page
	el   *rod.Element
	id   dom.NodeID
}

func wrap(ctx context.Context, page *rod.Page, el *rod.Element) (*Element, error) {
	node, err := el.Context(ctx).Describe(0, false)
	if err != nil {
		return nil, fmt.Errorf("roddom: describe: %w", err)
	}
	return &Element{page: page, el: el, id: dom.NodeID(node.BackendNodeID)}, nil
}

func wrapAll(ctx context.Context, page *rod.Page, els rod.Elements) ([]dom.Element, error) {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		w, err := wrap(ctx, page, el)
		if err != nil {
			// Nodes recycled between the query and the describe call are
			// simply skipped.
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (e *Element) ID() dom.NodeID { return e.id }

func (e *Element) Text(ctx context.Context) (string, error) {
	s, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("roddom: text: %w", err)
	}
	return s, nil
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("roddom: attr %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Query(ctx context.Context, selector string) (dom.Element, error) {
	has, el, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return wrap(ctx, e.page, el)
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("roddom: query all %q: %w", selector, err)
	}
	return wrapAll(ctx, e.page, els)
}

func (e *Element) Rect(ctx context.Context) (dom.Rect, error) {
	res, err := e.el.Context(ctx).Eval(`() => {
		if (!this.isConnected) return null;
		const r = this.getBoundingClientRect();
		return {top: r.top, left: r.left, bottom: r.bottom, right: r.right};
	}`)
	if err != nil {
		return dom.Rect{}, fmt.Errorf("roddom: rect: %w", err)
	}
	if res.Value.Nil() {
		return dom.Rect{}, dom.ErrDetached
	}
	return dom.Rect{
		Top:    res.Value.Get("top").Num(),
		Left:   res.Value.Get("left").Num(),
		Bottom: res.Value.Get("bottom").Num(),
		Right:  res.Value.Get("right").Num(),
	}, nil
}

func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	obj, err := e.el.Context(ctx).Evaluate(rod.Eval(`() => this.parentElement`).ByObject())
	if err != nil {
		return nil, fmt.Errorf("roddom: parent: %w", err)
	}
	if obj.ObjectID == "" || obj.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
		return nil, nil
	}
	parent, err := e.page.Context(ctx).ElementFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("roddom: parent object: %w", err)
	}
	return wrap(ctx, e.page, parent)
}

func (e *Element) Contains(ctx context.Context, other dom.Element) (bool, error) {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false, nil
	}
	res, err := e.el.Context(ctx).Eval(`(o) => this.contains(o)`, o.el.Object)
	if err != nil {
		return false, fmt.Errorf("roddom: contains: %w", err)
	}
	return res.Value.Bool(), nil
}

func (e *Element) Click(ctx context.Context) error {
	res, err := e.el.Context(ctx).Eval(`() => {
		if (!this.isConnected) return false;
		this.click();
		return true;
	}`)
	if err != nil {
		return fmt.Errorf("roddom: click: %w", err)
	}
	if !res.Value.Bool() {
		return dom.ErrDetached
	}
	return nil
}

func (e *Element) Hide(ctx context.Context) (dom.Style, error) {
	res, err := e.el.Context(ctx).Eval(`() => {
		const s = window.getComputedStyle(this);
		const prev = {display: s.display, visibility: s.visibility};
		this.style.display = 'none';
		return prev;
	}`)
	if err != nil {
		return dom.Style{}, fmt.Errorf("roddom: hide: %w", err)
	}
	return dom.Style{
		Display:    res.Value.Get("display").Str(),
		Visibility: res.Value.Get("visibility").Str(),
	}, nil
}

func (e *Element) Restore(ctx context.Context, s dom.Style) error {
	_, err := e.el.Context(ctx).Eval(`(d, v) => {
		this.style.display = d;
		this.style.visibility = v;
	}`, s.Display, s.Visibility)
	if err != nil {
		return fmt.Errorf("roddom: restore: %w", err)
	}
	return nil
}
