// Package domtest provides an in-memory dom.Document built from an HTML
// string. Mutating calls (clicks, value writes, submits, key presses) are
// recorded instead of executed so tests can assert on them.
package domtest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/aliscout/dom"
	"golang.org/x/net/html"
)

// Event is one recorded interaction.
type Event struct {
	Kind   string // "click", "set_value", "submit", "enter"
	Target string // tag#id.class of the element acted on
	Value  string
}

// Doc is a parsed document that records interactions.
type Doc struct {
	root *html.Node

	mu      sync.Mutex
	events  []Event
	storage map[string]string
	queries int

	// URL is reported by Location.
	URL string

	// ClickErr, when set, is returned by every Click.
	ClickErr error

	// ScrollHeight is the simulated document height for ScrollBy.
	// InnerHeight is the simulated viewport height.
	ScrollHeight float64
	InnerHeight  float64
	scrollY      float64
}

var (
	_ dom.Document = (*Doc)(nil)
	_ dom.Storage  = (*Doc)(nil)
	_ dom.Scroller = (*Doc)(nil)
)

// Parse builds a Doc from src.
func Parse(src string) (*Doc, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("domtest: parse: %w", err)
	}
	return &Doc{root: root, storage: make(map[string]string)}, nil
}

// MustParse is Parse that panics on error.
func MustParse(src string) *Doc {
	d, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return d
}

// Query implements dom.Document.
func (d *Doc) Query(_ context.Context, selector string) (dom.Element, bool, error) {
	d.mu.Lock()
	d.queries++
	d.mu.Unlock()
	n, err := queryFirst(d.root, selector)
	if err != nil || n == nil {
		return nil, false, err
	}
	return &element{doc: d, node: n}, true, nil
}

// HTML renders the current tree.
func (d *Doc) HTML(_ context.Context) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WaitFor succeeds when selector already matches; the tree never changes on its own.
func (d *Doc) WaitFor(ctx context.Context, selector string) error {
	_, ok, err := d.Query(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("domtest: %q not present", selector)
	}
	return nil
}

// Location returns d.URL.
func (d *Doc) Location(_ context.Context) (string, error) {
	return d.URL, nil
}

// SetItem implements dom.Storage.
func (d *Doc) SetItem(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storage[key] = value
	return nil
}

// ScrollBy implements dom.Scroller against the simulated heights.
func (d *Doc) ScrollBy(_ context.Context, dy float64) (dom.ScrollMetrics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	height := d.ScrollHeight
	d.scrollY += dy
	if max := d.ScrollHeight - d.InnerHeight; max >= 0 && d.scrollY > max {
		d.scrollY = max
	}
	return dom.ScrollMetrics{ScrollY: d.scrollY, InnerHeight: d.InnerHeight, ScrollHeight: height}, nil
}

// Item returns a stored value.
func (d *Doc) Item(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.storage[key]
	return v, ok
}

// Events returns a copy of the recorded interactions.
func (d *Doc) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Queries returns how many document-level queries were made.
func (d *Doc) Queries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries
}

func (d *Doc) record(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

type element struct {
	doc  *Doc
	node *html.Node
}

func (e *element) Query(_ context.Context, selector string) (dom.Element, bool, error) {
	n, err := queryFirst(e.node, selector)
	if err != nil || n == nil {
		return nil, false, err
	}
	return &element{doc: e.doc, node: n}, true, nil
}

func (e *element) Parent(_ context.Context) (dom.Element, bool, error) {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, false, nil
	}
	return &element{doc: e.doc, node: p}, true, nil
}

func (e *element) Text(_ context.Context) (string, error) {
	var sb strings.Builder
	collectText(e.node, &sb)
	return sb.String(), nil
}

func (e *element) Click(_ context.Context) error {
	if e.doc.ClickErr != nil {
		return e.doc.ClickErr
	}
	e.doc.record(Event{Kind: "click", Target: describe(e.node)})
	return nil
}

func (e *element) SetValue(_ context.Context, value string) error {
	setAttr(e.node, "value", value)
	e.doc.record(Event{Kind: "set_value", Target: describe(e.node), Value: value})
	return nil
}

func (e *element) SubmitForm(_ context.Context) (bool, error) {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			e.doc.record(Event{Kind: "submit", Target: describe(p)})
			return true, nil
		}
	}
	return false, nil
}

func (e *element) PressEnter(_ context.Context) error {
	e.doc.record(Event{Kind: "enter", Target: describe(e.node)})
	return nil
}

// queryFirst matches descendants of n (not n itself) in document order.
func queryFirst(n *html.Node, selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("domtest: selector %q: %w", selector, err)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := sel.MatchFirst(c); m != nil {
			return m, nil
		}
	}
	return nil, nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func setAttr(n *html.Node, key, value string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func describe(n *html.Node) string {
	var sb strings.Builder
	sb.WriteString(n.Data)
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			sb.WriteString("#" + a.Val)
		case "class":
			for _, c := range strings.Fields(a.Val) {
				sb.WriteString("." + c)
			}
		}
	}
	return sb.String()
}
