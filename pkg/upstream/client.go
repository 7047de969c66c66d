package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

var errBodyTooLarge = errors.New("response body too large")

type ClientCtx struct {
	logger zerolog.Logger
	config Config

	page  *http.Client // pages, player API and playlists
	media *http.Client // segments, bounded by the caller's context

	limiter *rate.Limiter
}

func New(config *Config) (*ClientCtx, error) {
	c := config.withDefaultValues()

	pageTransport, err := newTransport(c, 0)
	if err != nil {
		return nil, err
	}

	mediaTransport, err := newTransport(c, c.SegmentTimeout)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if c.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RateLimit), c.RateBurst)
	}

	return &ClientCtx{
		logger: log.With().Str("module", "upstream").Logger(),
		config: c,
		page: &http.Client{
			Timeout:   c.Timeout,
			Transport: pageTransport,
		},
		media: &http.Client{
			Transport: mediaTransport,
		},
		limiter: limiter,
	}, nil
}

func newTransport(config Config, responseHeaderTimeout time.Duration) (http.RoundTripper, error) {
	if config.Transport != nil {
		return config.Transport, nil
	}

	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}

	if config.Proxy == "" {
		return t, nil
	}

	u, err := url.Parse(config.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream proxy: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream proxy: %w", err)
		}

		t.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			t.DialContext = cd.DialContext
		} else {
			t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported upstream proxy scheme %q", u.Scheme)
	}

	return t, nil
}

func (c *ClientCtx) BaseURL() string {
	return c.config.BaseURL
}

func (c *ClientCtx) Identity() Identity {
	return c.config.Identity
}

func (c *ClientCtx) CloseIdleConnections() {
	c.page.CloseIdleConnections()
	c.media.CloseIdleConnections()
}

func (c *ClientCtx) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Page fetches an upstream HTML page as a desktop browser would, consent
// cookie included, following redirects.
func (c *ClientCtx) Page(ctx context.Context, rawURL string) (*Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	id := c.config.Identity
	req.Header.Set("User-Agent", id.DesktopUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Cookie", id.ConsentCookie)

	resp, err := c.do(c.page, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	return &Page{
		URL:  resp.Request.URL.String(),
		Body: string(body),
	}, nil
}

// PostJSON sends in as JSON presenting the mobile client identity and
// decodes the response into out.
func (c *ClientCtx) PostJSON(ctx context.Context, rawURL string, in any, out any) error {
	if err := c.wait(ctx); err != nil {
		return &Error{URL: rawURL, Err: err}
	}

	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return err
	}

	id := c.config.Identity
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", id.MobileUserAgent)
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	req.Header.Set("X-YouTube-Client-Name", id.ClientNameID)
	req.Header.Set("X-YouTube-Client-Version", id.ClientVersion)
	req.Header.Set("Origin", c.config.BaseURL)

	resp, err := c.do(c.page, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return &Error{URL: rawURL, Err: err}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unable to decode response from %s: %w", rawURL, err)
	}

	return nil
}

// Playlist fetches a playlist document as text.
func (c *ClientCtx) Playlist(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", c.config.Identity.DesktopUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.do(c.page, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return "", &Error{URL: rawURL, Err: err}
	}

	return string(body), nil
}

// Stream starts a media request and returns the response as is, whatever
// its status. Caller must close resp.Body.
func (c *ClientCtx) Stream(ctx context.Context, method string, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("User-Agent", c.config.Identity.DesktopUserAgent)

	resp, err := c.media.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("media request failed")
		return nil, &Error{URL: rawURL, Err: err}
	}

	return resp, nil
}

// do sends req and turns transport failures and non-2xx statuses into *Error.
func (c *ClientCtx) do(client *http.Client, req *http.Request) (*http.Response, error) {
	rawURL := req.URL.String()
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("request failed")
		return nil, &Error{URL: rawURL, Err: err}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", rawURL).
		Int("code", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// readBody reads the whole (decoded) body up to the configured limit.
func (c *ClientCtx) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(io.LimitReader(reader, c.config.MaxBodySize+1))
	if err != nil {
		return nil, err
	}

	if int64(len(body)) > c.config.MaxBodySize {
		return nil, errBodyTooLarge
	}

	return body, nil
}
