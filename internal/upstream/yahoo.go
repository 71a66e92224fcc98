package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/logger"
)

const (
	defaultYahooBaseURL    = "https://query1.finance.yahoo.com"
	defaultYahooSessionURL = "https://fc.yahoo.com"
	crumbPath              = "/v1/test/getcrumb"
)

// errSessionRejected marks a 401/403 on an endpoint that needs the crumb.
var errSessionRejected = errors.New("session rejected")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=upstream_test -destination=mock_http_client_test.go -source=yahoo.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// YahooClient implements Client over the public Yahoo Finance JSON endpoints.
type YahooClient struct {
	// baseURL is the scheme+host the endpoint paths are appended to.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// userAgent is sent with every request; the endpoints reject empty agents.
	userAgent string
	// sessionURL hands out the cookies the crumb is bound to.
	sessionURL string
	log        zerolog.Logger

	mu      sync.Mutex
	session *yahooSession
}

// yahooSession is the cookie+crumb pair the v7 quote endpoint requires.
type yahooSession struct {
	crumb   string
	cookies []*http.Cookie
}

// YahooOption is a configuration option for the Yahoo client.
type YahooOption func(*YahooClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) YahooOption {
	return func(c *YahooClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) YahooOption {
	return func(c *YahooClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) YahooOption {
	return func(c *YahooClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithSessionURL sets the page used to obtain session cookies.
func WithSessionURL(u string) YahooOption {
	return func(c *YahooClient) {
		if u != "" {
			c.sessionURL = u
		}
	}
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(options ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL:    defaultYahooBaseURL,
		httpClient: http.DefaultClient,
		userAgent:  "stockpulse/1.0",
		sessionURL: defaultYahooSessionURL,
		log:        logger.Component("upstream.yahoo"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ Client = (*YahooClient)(nil)

// chartResponse is the subset of /v8/finance/chart we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       map[string]any `json:"meta"`
			Timestamp  []int64        `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// quoteResponse is the /v7/finance/quote envelope.
type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
	} `json:"quoteResponse"`
}

// FastSnapshot reads the chart metadata of a one-day chart, which is the
// cheapest call exposing the live price.
func (c *YahooClient) FastSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")

	var payload chartResponse
	if err := c.getJSON(ctx, "fast snapshot", symbol, "/v8/finance/chart/"+url.PathEscape(symbol), q, &payload); err != nil {
		return nil, err
	}
	if len(payload.Chart.Result) == 0 || payload.Chart.Result[0].Meta == nil {
		return nil, fmt.Errorf("fast snapshot %s: %w", symbol, ErrNotFound)
	}

	meta := payload.Chart.Result[0].Meta
	snap := Snapshot{}
	copyField(snap, FieldLastPrice, meta, "regularMarketPrice")
	copyField(snap, FieldPreviousClose, meta, "previousClose", "chartPreviousClose")
	copyField(snap, FieldLastVolume, meta, "regularMarketVolume")
	copyField(snap, FieldMarketCap, meta, "marketCap")
	return snap, nil
}

// FullSnapshot reads the quote endpoint, whose field names already match the
// snapshot namespace. The endpoint needs a session crumb.
func (c *YahooClient) FullSnapshot(ctx context.Context, symbol string) (Snapshot, error) {
	q := url.Values{}
	q.Set("symbols", symbol)

	var payload quoteResponse
	if err := c.getSessionJSON(ctx, "full snapshot", symbol, "/v7/finance/quote", q, &payload); err != nil {
		return nil, err
	}
	if len(payload.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("full snapshot %s: %w", symbol, ErrNotFound)
	}
	return Snapshot(payload.QuoteResponse.Result[0]), nil
}

// DailyBars reads a daily chart between start and end (both inclusive).
// Rows where the source reported no low or close are skipped.
func (c *YahooClient) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	// period2 is exclusive upstream
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))

	var payload chartResponse
	if err := c.getJSON(ctx, "daily bars", symbol, "/v8/finance/chart/"+url.PathEscape(symbol), q, &payload); err != nil {
		return nil, err
	}
	if len(payload.Chart.Result) == 0 {
		return []models.Bar{}, nil
	}

	res := payload.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return []models.Bar{}, nil
	}
	ind := res.Indicators.Quote[0]

	var offset int64
	if v, ok := res.Meta["gmtoffset"].(float64); ok {
		offset = int64(v)
	}

	bars := make([]models.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		low, ok := at(ind.Low, i)
		if !ok {
			continue
		}
		closePrice, ok := at(ind.Close, i)
		if !ok {
			continue
		}
		open, _ := at(ind.Open, i)
		high, _ := at(ind.High, i)
		var volume int64
		if i < len(ind.Volume) && ind.Volume[i] != nil {
			volume = *ind.Volume[i]
		}
		// exchange-local calendar day
		local := time.Unix(ts+offset, 0).UTC()
		bars = append(bars, models.Bar{
			Date:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return bars, nil
}

// getJSON performs a GET and decodes the body into out, mapping failures onto
// the package error taxonomy.
func (c *YahooClient) getJSON(ctx context.Context, op, symbol, path string, query url.Values, out any) error {
	return c.doJSON(ctx, op, symbol, path, query, nil, out)
}

// getSessionJSON is getJSON with the session crumb and cookies attached. A
// rejected session is dropped and rebuilt once.
func (c *YahooClient) getSessionJSON(ctx context.Context, op, symbol, path string, query url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		sess, err := c.ensureSession(ctx)
		if err != nil {
			return fmt.Errorf("%s %s: %w", op, symbol, err)
		}
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("crumb", sess.crumb)

		err = c.doJSON(ctx, op, symbol, path, q, sess.cookies, out)
		if attempt == 0 && errors.Is(err, errSessionRejected) {
			c.log.Info().Str("op", op).Str("symbol", symbol).Msg("yahoo session rejected, refreshing crumb")
			c.dropSession(sess)
			continue
		}
		return err
	}
}

// ensureSession returns the cached session, creating it on first use.
func (c *YahooClient) ensureSession(ctx context.Context) (*yahooSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	// the consent page answers 404 but still sets the cookie
	var cookies []*http.Cookie
	if req, err := c.newRequest(ctx, c.sessionURL, nil); err == nil {
		if resp, err := c.httpClient.Do(req); err == nil {
			cookies = resp.Cookies()
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		} else {
			c.log.Debug().Err(err).Msg("session cookie request failed")
		}
	}

	req, err := c.newRequest(ctx, c.baseURL+crumbPath, cookies)
	if err != nil {
		return nil, fmt.Errorf("crumb: %w: %w", ErrUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crumb: %w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crumb: %w: http %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return nil, fmt.Errorf("crumb: %w: %w", ErrUnavailable, err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return nil, fmt.Errorf("crumb: %w: empty crumb", ErrUnavailable)
	}

	c.session = &yahooSession{crumb: crumb, cookies: cookies}
	c.log.Info().Int("cookies", len(cookies)).Msg("yahoo session initialized")
	return c.session, nil
}

// dropSession forgets sess unless another caller already replaced it.
func (c *YahooClient) dropSession(sess *yahooSession) {
	c.mu.Lock()
	if c.session == sess {
		c.session = nil
	}
	c.mu.Unlock()
}

func (c *YahooClient) newRequest(ctx context.Context, u string, cookies []*http.Cookie) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return req, nil
}

func (c *YahooClient) doJSON(ctx context.Context, op, symbol, path string, query url.Values, cookies []*http.Cookie, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := c.newRequest(ctx, u, cookies)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w: %w", op, symbol, ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("op", op).Str("symbol", symbol).Dur("elapsed", time.Since(start)).Err(err).Msg("upstream request failed")
		return fmt.Errorf("%s %s: %w: %w", op, symbol, ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().Str("op", op).Str("symbol", symbol).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("upstream request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", op, symbol, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w: %w: http %d", op, symbol, ErrUnavailable, errSessionRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s %s: %w: http %d", op, symbol, ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: %w", op, symbol, ErrMalformed, err)
	}
	return nil
}

// copyField stores the first non-null src key under dst key.
func copyField(dst Snapshot, key string, src map[string]any, srcKeys ...string) {
	for _, k := range srcKeys {
		if v, ok := src[k]; ok && v != nil {
			dst[key] = v
			return
		}
	}
}

func at(xs []*float64, i int) (float64, bool) {
	if i >= len(xs) || xs[i] == nil {
		return 0, false
	}
	return *xs[i], true
}
