// Package dom defines the small set of document capabilities the discovery
// pipeline needs from a live page. The scraper package backs them with a
// rod page; tests back them with an in-memory tree (see domtest).
package dom

import "context"

// Document is a queryable page.
type Document interface {
	// Query returns the first element matching the CSS selector.
	// A missing element is reported as ok=false with a nil error.
	Query(ctx context.Context, selector string) (el Element, ok bool, err error)
}

// Element is a single node in a Document.
type Element interface {
	// Query searches the element's subtree.
	Query(ctx context.Context, selector string) (el Element, ok bool, err error)

	// Parent returns the parent element, ok=false at the root.
	Parent(ctx context.Context) (el Element, ok bool, err error)

	// Text returns the element's text content, untrimmed.
	Text(ctx context.Context) (string, error)

	Click(ctx context.Context) error

	// SetValue writes an input value so that framework-bound listeners
	// observe it: clear, write through the native value setter (falling
	// back to direct assignment), dispatch input and change, then blur.
	SetValue(ctx context.Context, value string) error

	// SubmitForm submits the element's owning form. It reports false when
	// the element has no form.
	SubmitForm(ctx context.Context) (bool, error)

	// PressEnter dispatches a synthetic Enter keydown on the element.
	PressEnter(ctx context.Context) error
}

// Storage is implemented by documents that expose page-local key/value
// storage. Callers type-assert for it; it is optional.
type Storage interface {
	SetItem(ctx context.Context, key, value string) error
}

// ScrollMetrics is the viewport position after a scroll step.
type ScrollMetrics struct {
	ScrollY      float64
	InnerHeight  float64
	ScrollHeight float64
}

// AtBottom reports whether the viewport reaches the end of the document.
func (m ScrollMetrics) AtBottom() bool {
	return m.ScrollY+m.InnerHeight >= m.ScrollHeight
}

// Scroller scrolls a page vertically.
type Scroller interface {
	// ScrollBy scrolls dy pixels and returns the metrics measured after the
	// step. ScrollHeight is sampled before the step, matching what a page
	// script sees when it reads scrollHeight and then scrolls.
	ScrollBy(ctx context.Context, dy float64) (ScrollMetrics, error)
}
