package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

// Options configures the browser session.
type Options struct {
	Bin        string
	Headless   bool
	ProfileDir string // Chrome profile directory, reused across runs to keep the site's login
	// Flags are passed to Chrome as given, e.g. "start-maximized" or
	// "--disable-extensions". A "name=value" flag is split on the first '='.
	Flags        []string
	URLs         []string
	Width        int
	Height       int
	PollInterval time.Duration
}

// Session wraps the rod browser and the windows it has seen, in the order
// they opened.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *zap.Logger
	poll     time.Duration

	mu      sync.Mutex
	windows []*rod.Page
	ignored map[proto.TargetTargetID]bool

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chrome and opens opts.URLs, the first one becoming window 0.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if len(opts.URLs) == 0 {
		return nil, fmt.Errorf("no start URL configured")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}

	l := launcher.New().Context(ctx).Headless(opts.Headless)
	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	for _, raw := range opts.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	s := &Session{
		browser:  b,
		launcher: l,
		logger:   logger.Named("browser"),
		poll:     opts.PollInterval,
		ignored:  make(map[proto.TargetTargetID]bool),
	}

	// Chrome opens its own tab at start-up; only pages we or the site open
	// count as windows.
	startup, err := b.Pages()
	if err == nil {
		for _, p := range startup {
			s.ignored[p.TargetID] = true
		}
	}

	for i, url := range opts.URLs {
		page, err := b.Page(proto.TargetCreateTarget{URL: url})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s: %w", url, err)
		}
		if opts.Width > 0 && opts.Height > 0 {
			if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
				Width:             opts.Width,
				Height:            opts.Height,
				DeviceScaleFactor: 1,
			}); err != nil {
				s.logger.Warn("Failed to set viewport.", zap.Error(err))
			}
		}
		if err := page.WaitLoad(); err != nil {
			s.logger.Warn("Page did not finish loading.", zap.String("url", url), zap.Error(err))
		}
		s.windows = append(s.windows, page)
		s.logger.Debug("Opened window.", zap.Int("index", i), zap.String("url", url))
	}
	for _, p := range startup {
		_ = p.Close()
	}

	return s, nil
}

// Window returns the window at index, polling until the site has opened it.
func (s *Session) Window(ctx context.Context, index int, wait time.Duration) (Window, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		if err := s.refresh(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		if index < len(s.windows) {
			p := s.windows[index]
			s.mu.Unlock()
			return &rodWindow{page: p, index: index}, nil
		}
		open := len(s.windows)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: index %d after %s (%d open)", ErrNoWindow, index, wait, open)
		case <-time.After(s.poll):
		}
	}
}

// refresh drops windows that have closed and appends ones that appeared.
func (s *Session) refresh() error {
	pages, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	alive := make(map[proto.TargetTargetID]*rod.Page, len(pages))
	for _, p := range pages {
		alive[p.TargetID] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.windows[:0]
	known := make(map[proto.TargetTargetID]bool, len(s.windows))
	for _, p := range s.windows {
		if _, ok := alive[p.TargetID]; ok {
			kept = append(kept, p)
			known[p.TargetID] = true
		}
	}
	s.windows = kept

	for _, p := range pages {
		if known[p.TargetID] || s.ignored[p.TargetID] {
			continue
		}
		s.windows = append(s.windows, p)
		s.logger.Debug("Discovered window.", zap.Int("index", len(s.windows)-1), zap.String("target", string(p.TargetID)))
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once. The
// profile directory is left in place.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
		}
	})
	return s.closeErr
}

type rodWindow struct {
	page  *rod.Page
	index int
}

func (w *rodWindow) Index() int { return w.index }

func (w *rodWindow) Focus(ctx context.Context) error {
	_, err := w.page.Context(ctx).Activate()
	return err
}

func (w *rodWindow) Find(ctx context.Context, loc script.Locator, wait time.Duration) (Element, error) {
	p := w.page.Context(ctx).Timeout(wait)

	var el *rod.Element
	var err error
	if loc.By == script.ByActive {
		el, err = p.ElementByJS(rod.Eval(`() => document.activeElement`))
	} else {
		el, err = p.Element(selectorFor(loc))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s within %s", ErrNotFound, loc, wait)
		}
		return nil, err
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

func (w *rodWindow) URL(ctx context.Context) (string, error) {
	info, err := w.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (w *rodWindow) Screenshot(ctx context.Context) ([]byte, error) {
	return w.page.Context(ctx).Screenshot(false, nil)
}

func selectorFor(loc script.Locator) string {
	switch loc.By {
	case script.ByID:
		return `[id="` + escapeAttr(loc.Value) + `"]`
	case script.ByName:
		return `[name="` + escapeAttr(loc.Value) + `"]`
	}
	return loc.Value
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *rodElement) SendKeys(ctx context.Context, keys string) error {
	el := e.el.Context(ctx)
	if err := el.Focus(); err != nil {
		return err
	}
	page := el.Page()

	for _, ks := range keystrokes(keys) {
		var err error
		if ks.text != "" {
			err = page.InsertText(ks.text)
		} else {
			err = page.Keyboard.Type(ks.key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// keystroke is one key press, or text for runes with no key on a US layout.
type keystroke struct {
	key  input.Key
	text string
}

// keystrokes turns bound keys into real key presses so type-ahead fields see
// keydown and keyup for every character.
func keystrokes(keys string) []keystroke {
	var out []keystroke
	for _, r := range keys {
		switch {
		case string(r) == script.KeyTab:
			out = append(out, keystroke{key: input.Tab})
		case string(r) == script.KeyEnter:
			out = append(out, keystroke{key: input.Enter})
		case r >= ' ' && r <= '~':
			out = append(out, keystroke{key: input.Key(r)})
		default:
			if n := len(out); n > 0 && out[n-1].text != "" {
				out[n-1].text += string(r)
			} else {
				out = append(out, keystroke{text: string(r)})
			}
		}
	}
	return out
}

func (e *rodElement) Select(ctx context.Context, option string) error {
	return e.el.Context(ctx).Select([]string{option}, true, rod.SelectorTypeText)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *rodElement) Center(ctx context.Context) (int, int, error) {
	box, err := e.el.Context(ctx).Shape()
	if err != nil {
		return 0, 0, err
	}
	if len(box.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape")
	}
	quad := box.Quads[0]
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return int(x), int(y), nil
}
