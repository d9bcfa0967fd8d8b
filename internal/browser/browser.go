// Package browser drives the target site. The executor depends only on the
// interfaces here; Session is the go-rod implementation.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

var (
	// ErrNotFound is returned by Find when no element matched before the wait
	// ran out.
	ErrNotFound = errors.New("element not found")
	// ErrNoWindow is returned by Window when the requested window never opened.
	ErrNoWindow = errors.New("window not open")
)

// Driver owns the browser process and its windows.
type Driver interface {
	// Window blocks until the window with the given index exists, or wait
	// elapses.
	Window(ctx context.Context, index int, wait time.Duration) (Window, error)
	Close() error
}

// Window is one top-level browser window.
type Window interface {
	Index() int
	Focus(ctx context.Context) error
	// Find polls for an element until it appears or wait elapses.
	Find(ctx context.Context, loc script.Locator, wait time.Duration) (Element, error)
	URL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Element is a located DOM node.
type Element interface {
	Click(ctx context.Context) error
	Hover(ctx context.Context) error
	// SendKeys types keys one key press at a time. script.KeyTab and
	// script.KeyEnter press Tab and Enter.
	SendKeys(ctx context.Context, keys string) error
	Select(ctx context.Context, option string) error
	Text(ctx context.Context) (string, error)
	// Value returns the live value property of form controls.
	Value(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Center(ctx context.Context) (x, y int, err error)
}
