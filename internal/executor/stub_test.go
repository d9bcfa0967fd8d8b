package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/browser"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

// stubDriver is an in-memory browser. Elements are keyed by Locator.String().
type stubDriver struct {
	mu      sync.Mutex
	windows []*stubWindow
	log     []string
	waits   []time.Duration
	closed  bool
}

func newStubDriver(urls ...string) *stubDriver {
	d := &stubDriver{}
	for _, u := range urls {
		d.open(u)
	}
	return d
}

func (d *stubDriver) open(url string) *stubWindow {
	return d.openWith(url, nil)
}

// openWith populates the window before it becomes visible to Window.
func (d *stubDriver) openWith(url string, setup func(w *stubWindow)) *stubWindow {
	w := &stubWindow{d: d, url: url, elements: make(map[string]*stubElement)}
	if setup != nil {
		setup(w)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w.idx = len(d.windows)
	d.windows = append(d.windows, w)
	return w
}

func (d *stubDriver) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, fmt.Sprintf(format, args...))
}

func (d *stubDriver) actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.log...)
}

func (d *stubDriver) window(i int) *stubWindow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.windows[i]
}

func (d *stubDriver) Window(ctx context.Context, index int, wait time.Duration) (browser.Window, error) {
	deadline := time.After(wait)
	for {
		d.mu.Lock()
		if index < len(d.windows) {
			w := d.windows[index]
			d.mu.Unlock()
			return w, nil
		}
		d.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, browser.ErrNoWindow
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (d *stubDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type stubWindow struct {
	d        *stubDriver
	idx      int
	url      string
	elements map[string]*stubElement
}

func (w *stubWindow) add(loc script.Locator, el *stubElement) *stubElement {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	el.w = w
	el.name = loc.String()
	w.elements[el.name] = el
	return el
}

func (w *stubWindow) Index() int { return w.idx }

func (w *stubWindow) Focus(context.Context) error {
	w.d.record("w%d focus", w.idx)
	return nil
}

func (w *stubWindow) Find(_ context.Context, loc script.Locator, wait time.Duration) (browser.Element, error) {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	w.d.waits = append(w.d.waits, wait)
	el, ok := w.elements[loc.String()]
	if !ok {
		return nil, browser.ErrNotFound
	}
	if el.hiddenFor > 0 {
		el.hiddenFor--
		return nil, browser.ErrNotFound
	}
	return el, nil
}

func (w *stubWindow) URL(context.Context) (string, error) { return w.url, nil }

func (w *stubWindow) Screenshot(context.Context) ([]byte, error) { return nil, nil }

type stubElement struct {
	w       *stubWindow
	name    string
	value   string
	text    string
	attrs   map[string]string
	onClick func()
	failOn  string
	// hiddenFor is the number of lookups that miss before the element shows.
	hiddenFor int
}

func (e *stubElement) fail(action string) error {
	if e.failOn == action {
		return fmt.Errorf("%s refused", action)
	}
	return nil
}

func (e *stubElement) Click(context.Context) error {
	if err := e.fail("click"); err != nil {
		return err
	}
	e.w.d.record("w%d click %s", e.w.idx, e.name)
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *stubElement) Hover(context.Context) error {
	e.w.d.record("w%d hover %s", e.w.idx, e.name)
	return nil
}

func (e *stubElement) SendKeys(_ context.Context, keys string) error {
	if err := e.fail("send-keys"); err != nil {
		return err
	}
	e.w.d.record("w%d keys %s %q", e.w.idx, e.name, keys)
	text, _ := script.SplitKeys(keys)
	e.value += text
	return nil
}

func (e *stubElement) Select(_ context.Context, option string) error {
	e.w.d.record("w%d select %s %q", e.w.idx, e.name, option)
	return nil
}

func (e *stubElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *stubElement) Value(context.Context) (string, error) { return e.value, nil }

func (e *stubElement) Attribute(_ context.Context, name string) (string, error) {
	return e.attrs[name], nil
}

func (e *stubElement) Center(context.Context) (int, int, error) { return 10, 10, nil }

func id(v string) script.Locator   { return script.Locator{By: script.ByID, Value: v} }
func name(v string) script.Locator { return script.Locator{By: script.ByName, Value: v} }
func css(v string) script.Locator  { return script.Locator{By: script.ByCSS, Value: v} }
