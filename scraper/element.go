package scraper

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/aliscout/dom"
)

// setValueJS writes through the native value setter so that framework
// bindings see the change, then fires input and change and blurs.
const setValueJS = `function (value) {
	this.focus();
	this.value = '';
	const proto = Object.getPrototypeOf(this);
	const desc = Object.getOwnPropertyDescriptor(proto, 'value');
	if (desc && desc.set) {
		desc.set.call(this, value);
	} else {
		this.value = value;
	}
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	this.blur();
}`

const submitFormJS = `function () {
	const form = this.form || this.closest('form');
	if (!form) return false;
	if (typeof form.requestSubmit === 'function') {
		form.requestSubmit();
	} else {
		form.submit();
	}
	return true;
}`

const pressEnterJS = `function () {
	const opts = { key: 'Enter', code: 'Enter', keyCode: 13, which: 13, bubbles: true };
	this.dispatchEvent(new KeyboardEvent('keydown', opts));
	this.dispatchEvent(new KeyboardEvent('keypress', opts));
	this.dispatchEvent(new KeyboardEvent('keyup', opts));
}`

// Element adapts a rod element to dom.Element.
type Element struct {
	el *rod.Element
}

var _ dom.Element = (*Element)(nil)

func (e *Element) bind(ctx context.Context) *rod.Element {
	return e.el.Context(ctx)
}

func (e *Element) Query(ctx context.Context, selector string) (dom.Element, bool, error) {
	ok, el, err := e.bind(ctx).Has(selector)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Element{el: el}, true, nil
}

func (e *Element) Parent(ctx context.Context) (dom.Element, bool, error) {
	p, err := e.bind(ctx).Parent()
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, nil
	}
	return &Element{el: p}, true, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.bind(ctx).Eval(`function () { return this.textContent || '' }`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Click uses a real mouse click and falls back to a DOM click when the
// element is covered or outside the viewport.
func (e *Element) Click(ctx context.Context) error {
	el := e.bind(ctx)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if _, jsErr := el.Eval(`function () { this.click() }`); jsErr != nil {
			return fmt.Errorf("click: %w (dom click: %v)", err, jsErr)
		}
	}
	return nil
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	_, err := e.bind(ctx).Eval(setValueJS, value)
	return err
}

func (e *Element) SubmitForm(ctx context.Context) (bool, error) {
	res, err := e.bind(ctx).Eval(submitFormJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *Element) PressEnter(ctx context.Context) error {
	_, err := e.bind(ctx).Eval(pressEnterJS)
	return err
}
