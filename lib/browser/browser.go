// Package browser wraps a headless-browser session with network-response
// interception, so callers can read the JSON payloads a page fetches for
// itself instead of calling the page's API directly.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Exchange is one intercepted network response.
type Exchange struct {
	URL             string
	Status          int64
	ContentType     string
	ContentEncoding string
	Body            []byte
}

type Cookie struct {
	Name  string
	Value string
}

type Options struct {
	// candidate browser executables, tried in order; an empty string means
	// chromedp's own lookup
	ExecPaths []string
	Headless  bool
	UserAgent string
}

// one bootstrap fallback between two equivalent providers, mirroring the
// chrome-then-edge attempt order of the deployment environment
var DefaultExecPaths = []string{"", "/usr/bin/microsoft-edge"}

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

const bootstrapTimeout = 30 * time.Second

type Session struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	// chromedp delivers target events on its own goroutine
	mu       sync.Mutex
	order    []network.RequestID
	meta     map[network.RequestID]*Exchange
	finished map[network.RequestID]bool
}

// NewSession starts a browser, walking the candidate executables in order
// and returning the first that boots.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	paths := opts.ExecPaths
	if len(paths) == 0 {
		paths = DefaultExecPaths
	}

	var errlist []error
	for _, path := range paths {
		s, err := newSessionWithExec(ctx, opts, path)
		if err == nil {
			return s, nil
		}
		display := path
		if display == "" {
			display = "(auto)"
		}
		slog.Warn("browser bootstrap failed", "exec", display, "err", err)
		errlist = append(errlist, err)
	}
	return nil, fmt.Errorf("no usable browser executable: %w", errors.Join(errlist...))
}

func newSessionWithExec(ctx context.Context, opts Options, execPath string) (*Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(ua),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		meta:        map[network.RequestID]*Exchange{},
		finished:    map[network.RequestID]bool{},
	}
	s.listen()

	bootCtx, cancel := context.WithTimeout(tabCtx, bootstrapTimeout)
	defer cancel()
	if err := chromedp.Run(bootCtx, network.Enable()); err != nil {
		tabCancel()
		allocCancel()
		return nil, err
	}
	return s, nil
}

func (s *Session) listen() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			s.mu.Lock()
			s.order = append(s.order, e.RequestID)
			s.meta[e.RequestID] = &Exchange{
				URL:             e.Response.URL,
				Status:          e.Response.Status,
				ContentType:     e.Response.MimeType,
				ContentEncoding: headerValue(e.Response.Headers, "content-encoding"),
			}
			s.mu.Unlock()
		case *network.EventLoadingFinished:
			s.mu.Lock()
			s.finished[e.RequestID] = true
			s.mu.Unlock()
		}
	})
}

func headerValue(headers network.Headers, name string) string {
	for key, value := range headers {
		if !strings.EqualFold(key, name) {
			continue
		}
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

// Navigate loads a URL and waits a fixed settle delay for the page's own
// fetches to start.
func (s *Session) Navigate(url string, settle time.Duration) error {
	return chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
	)
}

// Eval runs a script in the page, decoding its result into res. Pass a nil
// res to discard the result.
func (s *Session) Eval(script string, res any) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(script, res))
}

// WaitReady polls for an element matching the selector, bounded by timeout.
func (s *Session) WaitReady(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *Session) PageHTML() (string, error) {
	var html string
	err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Cookies() ([]Cookie, error) {
	var out []Cookie
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, Cookie{Name: c.Name, Value: c.Value})
		}
		return nil
	}))
	return out, err
}

// Exchanges returns the completed intercepted responses in arrival order,
// fetching each body from the browser. A body that can no longer be
// retrieved leaves its exchange with an empty body rather than failing the
// whole read.
func (s *Session) Exchanges() ([]Exchange, error) {
	s.mu.Lock()
	var ids []network.RequestID
	for _, id := range s.order {
		if s.finished[id] {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, id := range ids {
			body, err := network.GetResponseBody(id).Do(ctx)
			if err != nil {
				s.mu.Lock()
				url := s.meta[id].URL
				s.mu.Unlock()
				slog.Debug("response body unavailable", "url", url, "err", err)
				continue
			}
			s.mu.Lock()
			s.meta[id].Body = body
			s.mu.Unlock()
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.meta[id])
	}
	return out, nil
}

// Close terminates the browser session. Safe to call on every exit path.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}
