package evindustry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"evcs-harvester/lib/browser"
)

var tracer = otel.Tracer("lib/scrapers/evindustry")

const (
	// site redraws the listings while the map markers stream in
	defaultSettle  = 5 * time.Second
	markerTimeout  = 15 * time.Second
	scrollPause    = 2 * time.Second
	maxScrollLoops = 10
)

var ErrNoCsrfToken = errors.New("could not locate a CSRF token on the page")

type ClientOptions struct {
	TargetURL string
	Browser   browser.Options
	// Settle is how long to wait after navigation before reading the
	// page. Zero means the default.
	Settle time.Duration
}

// Client drives a browser session against the charging station
// directory and pulls the JSON payloads the page loads internally.
type Client struct {
	session *browser.Session
	url     string
	settle  time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	ctx, span := tracer.Start(ctx, "NewClient")
	defer span.End()

	session, err := browser.NewSession(ctx, opts.Browser)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start browser session")
		return nil, err
	}
	return &Client{session: session, url: opts.TargetURL, settle: resolveSettle(opts.Settle)}, nil
}

func (c *Client) Close() {
	c.session.Close()
}

func resolveSettle(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultSettle
	}
	return d
}

// LoadListings navigates to the directory and scrolls until the page
// stops growing, so lazily rendered stations make it into the captured
// responses.
func (c *Client) LoadListings(ctx context.Context) error {
	_, span := tracer.Start(ctx, "LoadListings")
	defer span.End()

	err := c.session.Navigate(c.url, c.settle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to navigate to listings page")
		return fmt.Errorf("failed to load %s: %w", c.url, err)
	}

	// the map is the last element to hydrate; keep going without it
	// since the listings payload may have already arrived
	err = c.session.WaitReady("#map", markerTimeout)
	if err != nil {
		slog.WarnContext(ctx, "map element never became ready", "err", err)
	}

	var lastHeight float64
	err = c.session.Eval("document.body.scrollHeight", &lastHeight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page height")
		return err
	}
	for i := 0; i < maxScrollLoops; i++ {
		err = c.session.Eval("window.scrollTo(0, document.body.scrollHeight)", nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scroll page")
			return err
		}
		time.Sleep(scrollPause)

		var height float64
		err = c.session.Eval("document.body.scrollHeight", &height)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read page height")
			return err
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}

	return nil
}

// CsrfToken looks for the page's CSRF token in the usual Laravel
// places, checking the meta tag, then a hidden form input, then the
// XSRF-TOKEN cookie.
func (c *Client) CsrfToken(ctx context.Context) (string, error) {
	_, span := tracer.Start(ctx, "CsrfToken")
	defer span.End()

	html, err := c.session.PageHTML()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page html")
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse page html")
		return "", err
	}

	if token, ok := doc.Find(`meta[name="csrf-token"]`).Attr("content"); ok && token != "" {
		return token, nil
	}
	if token, ok := doc.Find(`input[name="_token"]`).Attr("value"); ok && token != "" {
		return token, nil
	}

	cookies, err := c.session.Cookies()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cookies")
		return "", err
	}
	for _, cookie := range cookies {
		if cookie.Name != "XSRF-TOKEN" || cookie.Value == "" {
			continue
		}
		token, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			return cookie.Value, nil
		}
		return token, nil
	}

	span.SetStatus(codes.Error, "no csrf token found")
	return "", ErrNoCsrfToken
}

// EmbeddedData falls back to a payload inlined in a script tag when no
// JSON exchange was captured, which happens when the page renders the
// listings server side.
func (c *Client) EmbeddedData(ctx context.Context) (map[string]any, bool) {
	_, span := tracer.Start(ctx, "EmbeddedData")
	defer span.End()

	html, err := c.session.PageHTML()
	if err != nil {
		span.RecordError(err)
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		span.RecordError(err)
		return nil, false
	}

	var payload map[string]any
	doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
		text := script.Text()
		start := strings.Index(text, "window.evcs_data = ")
		if start < 0 {
			return true
		}
		text = text[start+len("window.evcs_data = "):]
		end := strings.Index(text, ";")
		if end < 0 {
			return true
		}

		var parsed map[string]any
		if err := json.Unmarshal([]byte(text[:end]), &parsed); err != nil {
			return true
		}
		if _, ok := Chargepoints(parsed); !ok {
			return true
		}
		payload = parsed
		return false
	})

	return payload, payload != nil
}

// Harvest decodes every captured JSON exchange from the target page
// into charge point batches. Responses that are not listings payloads
// are skipped silently; malformed ones produce warnings.
func (c *Client) Harvest(ctx context.Context) (batches [][]map[string]any, warnings []string, err error) {
	_, span := tracer.Start(ctx, "Harvest")
	defer span.End()

	exchanges, err := c.session.Exchanges()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to collect network exchanges")
		return nil, nil, err
	}

	for _, exchange := range exchanges {
		if !c.relevant(exchange) {
			continue
		}
		doc, err := Decode(exchange.Body, exchange.ContentEncoding)
		if errors.Is(err, ErrNoChargepoints) {
			continue
		}
		if err != nil {
			warning := fmt.Sprintf("skipping response from %s: %v", exchange.URL, err)
			slog.WarnContext(ctx, "dropping undecodable response",
				"url", exchange.URL, "err", err)
			warnings = append(warnings, warning)
			continue
		}
		points, _ := Chargepoints(doc)
		batches = append(batches, points)
	}

	if len(batches) == 0 {
		if doc, ok := c.EmbeddedData(ctx); ok {
			slog.InfoContext(ctx, "no json exchanges captured, using embedded page data")
			points, _ := Chargepoints(doc)
			batches = append(batches, points)
		}
	}

	return batches, warnings, nil
}

// relevant keeps only JSON responses served from the target page
// itself. The site answers the listings route with JSON when asked via
// XHR and the captured exchange carries that content type.
func (c *Client) relevant(exchange browser.Exchange) bool {
	if !strings.Contains(strings.ToLower(exchange.ContentType), "application/json") {
		return false
	}
	return strings.HasPrefix(exchange.URL, c.url)
}
