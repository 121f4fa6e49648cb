package aliexpress

import (
	"context"
	"errors"
	"sync"

	"github.com/use-agent/aliscout/dom/domtest"
	"github.com/use-agent/aliscout/ixspy"
	"github.com/use-agent/aliscout/models"
)

// fakeTab serves ready states in order, repeating the last one.
type fakeTab struct {
	*domtest.Doc
	states   []string
	stateErr error

	mu       sync.Mutex
	polls    int
	closed   int
	failures int
}

func (t *fakeTab) ReportFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}

func (t *fakeTab) ReadyState(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++
	if t.stateErr != nil {
		return "", t.stateErr
	}
	if len(t.states) == 0 {
		return readyComplete, nil
	}
	i := t.polls - 1
	if i >= len(t.states) {
		i = len(t.states) - 1
	}
	return t.states[i], nil
}

func (t *fakeTab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

// fakeOpener hands out tabs by URL.
type fakeOpener struct {
	tabs map[string]*fakeTab
	err  error

	mu     sync.Mutex
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, url string) (Tab, error) {
	o.mu.Lock()
	o.opened = append(o.opened, url)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	tab, ok := o.tabs[url]
	if !ok {
		return nil, errors.New("popup blocked")
	}
	return tab, nil
}

func detailTab(html string, states ...string) *fakeTab {
	return &fakeTab{Doc: domtest.MustParse(html), states: states}
}

const fullReviewer = `<div class="reviewer--wrap--vGS7G6P">` +
	`<a class="reviewer--rating--xrWWFzx"><strong>4.9</strong></a>` +
	`<span class="reviewer--reviews--cx7Zs_V"> 1,024 Reviews </span>` +
	`<span class="reviewer--sold--ytPeoEy">5,000+ sold</span>` +
	`</div>`

// fakeLookup answers from a map and can fail on one id.
type fakeLookup struct {
	dates        map[string]string
	unauthorized string

	mu    sync.Mutex
	calls []string
}

func (l *fakeLookup) FetchInfo(_ context.Context, id string) (*ixspy.Info, error) {
	l.mu.Lock()
	l.calls = append(l.calls, id)
	l.mu.Unlock()
	if id == l.unauthorized {
		return nil, models.ErrUnauthorized
	}
	if d, ok := l.dates[id]; ok {
		return &ixspy.Info{AddDate: d}, nil
	}
	return nil, nil
}
