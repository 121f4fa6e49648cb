package aliexpress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/aliscout/dom"
)

// maxDetailBody caps how much of a detail page is read.
const maxDetailBody = 8 << 20

var errReadOnly = errors.New("static document is read-only")

// StaticFetcher reads details from the server-rendered product page
// without a browser. It sees only what the first response contains, so
// it times out (ErrDetailTimeout) on pages that render the reviewer block
// client-side.
type StaticFetcher struct {
	Client    *http.Client
	UserAgent string
}

// FetchDetail implements DetailFetcher.
func (f *StaticFetcher) FetchDetail(ctx context.Context, url string) (*Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build detail request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTabOpen, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("detail page: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxDetailBody))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	d, ok, err := readDetail(ctx, staticElement{doc.Selection})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDetailTimeout
	}
	return d, nil
}

// staticElement adapts a goquery selection to dom.Element for reading.
type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Query(_ context.Context, selector string) (dom.Element, bool, error) {
	found := e.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false, nil
	}
	return staticElement{found}, true, nil
}

func (e staticElement) Parent(_ context.Context) (dom.Element, bool, error) {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, false, nil
	}
	return staticElement{p}, true, nil
}

func (e staticElement) Text(_ context.Context) (string, error) {
	return e.sel.Text(), nil
}

func (staticElement) Click(context.Context) error              { return errReadOnly }
func (staticElement) SetValue(context.Context, string) error   { return errReadOnly }
func (staticElement) SubmitForm(context.Context) (bool, error) { return false, errReadOnly }
func (staticElement) PressEnter(context.Context) error         { return errReadOnly }
