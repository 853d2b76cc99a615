// Package dom is the narrow view of the host page the engine works against.
// The engine never touches CDP directly: it reads text, attributes and
// geometry, and activates the page's own controls with synthetic clicks.
//
// Two implementations exist: roddom (a live Chrome tab through go-rod) and
// domtest (an HTML fixture used by tests).
package dom

import (
	"context"
	"errors"
)

// NodeID identifies a node for as long as the page keeps it alive.
type NodeID int64

// Rect is a bounding client rectangle in CSS pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// Viewport is the visible window size in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style is the visual state saved when an element is hidden, so it can be
// put back exactly.
type Style struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
}

// ErrDetached is returned when an element no longer belongs to the document.
var ErrDetached = errors.New("dom: element detached")

// Element is one node of the live document.
type Element interface {
	ID() NodeID
	// Text returns the rendered text (innerText), line breaks included.
	Text(ctx context.Context) (string, error)
	// Attr returns the attribute value and whether it is present.
	Attr(ctx context.Context, name string) (string, bool, error)
	// Query returns the first descendant matching selector, or nil.
	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	Rect(ctx context.Context) (Rect, error)
	// Parent returns the parent element, or nil at the root.
	Parent(ctx context.Context) (Element, error)
	// Contains reports whether other is this element or one of its descendants.
	Contains(ctx context.Context, other Element) (bool, error)
	// Click dispatches a synthetic activation (HTMLElement.click).
	Click(ctx context.Context) error
	// Hide sets display:none and returns the previous style.
	Hide(ctx context.Context) (Style, error)
	Restore(ctx context.Context, s Style) error
}

// Document is the page-level view.
type Document interface {
	URL(ctx context.Context) (string, error)
	Viewport(ctx context.Context) (Viewport, error)
	Query(ctx context.Context, selector string) (Element, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// ElementFromPoint returns the topmost element at the given viewport
	// coordinates, or nil.
	ElementFromPoint(ctx context.Context, x, y float64) (Element, error)
}

