package nse

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
)

// ErrUpstreamStatus is returned when the quote endpoint answers with a
// non-success status. These responses are not cached by callers so the
// next lookup retries upstream.
var ErrUpstreamStatus = errors.New("nse: unexpected upstream status")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=nse_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ClientConfig configures a quote client.
type ClientConfig struct {
	BaseURL   string
	SearchURL string
}

// Client issues authenticated JSON calls against the quote site.
type Client struct {
	cfg        ClientConfig
	httpClient HTTPClient
}

func NewClient(cfg ClientConfig, hc HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.nseindia.com"
	}
	return &Client{cfg: cfg, httpClient: hc}
}

// PriceInfo holds the two fields the watch-list cares about. Either may be
// legitimately absent upstream, in which case the pointer stays nil.
type PriceInfo struct {
	LastPrice *float64
	INavValue *float64
}

type quoteResponse struct {
	PriceInfo struct {
		LastPrice looseFloat `json:"lastPrice"`
		INavValue looseFloat `json:"iNavValue"`
	} `json:"priceInfo"`
}

// Quote fetches price and iNAV for a single symbol using the given session
// credential. Symbols are case-sensitive upstream identifiers and are passed
// through untouched.
func (c *Client) Quote(ctx context.Context, cred Credential, symbol string) (PriceInfo, error) {
	quoteURL := c.cfg.BaseURL + "/api/quote-equity?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, quoteURL, nil)
	if err != nil {
		return PriceInfo{}, err
	}
	// The site's bot detection wants a page-like referer alongside the
	// session cookies.
	req.Header.Set("Referer", c.cfg.BaseURL+"/get-quotes/equity?symbol="+url.QueryEscape(symbol))
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.AddCookie(&http.Cookie{Name: cookieNsit, Value: cred.Nsit})
	req.AddCookie(&http.Cookie{Name: cookieAppID, Value: cred.AppID})

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return PriceInfo{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return PriceInfo{}, fmt.Errorf("%w: quote %s -> %d: %s", ErrUpstreamStatus, symbol, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return PriceInfo{}, fmt.Errorf("quote %s: decode: %w", symbol, err)
	}
	return PriceInfo{
		LastPrice: qr.PriceInfo.LastPrice.val,
		INavValue: qr.PriceInfo.INavValue.val,
	}, nil
}

// looseFloat accepts JSON numbers and numeric strings (the site emits both,
// occasionally with thousands separators). Anything unparseable maps to
// absent, never to zero.
type looseFloat struct {
	val *float64
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.val = &v
	return nil
}
