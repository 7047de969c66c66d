package upstream

import (
	"net/http"
	"strings"
	"time"
)

// Identity is the browser and mobile client the relay presents to upstream.
// It is built once from configuration and never mutated afterwards.
type Identity struct {
	DesktopUserAgent string
	MobileUserAgent  string
	AcceptLanguage   string
	ConsentCookie    string

	// player API client, sent both as headers and in the request body
	ClientName    string
	ClientNameID  string
	ClientVersion string
	DeviceMake    string
	DeviceModel   string
	OSName        string
	OSVersion     string
}

func DefaultIdentity() Identity {
	return Identity{
		DesktopUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MobileUserAgent:  "com.google.ios.youtube/19.45.4 (iPhone16,2; U; CPU iOS 18_1_0 like Mac OS X;)",
		AcceptLanguage:   "en-US,en;q=0.9",
		ConsentCookie:    "CONSENT=YES+cb; SOCS=CAI",

		ClientName:    "IOS",
		ClientNameID:  "5",
		ClientVersion: "19.45.4",
		DeviceMake:    "Apple",
		DeviceModel:   "iPhone16,2",
		OSName:        "iPhone",
		OSVersion:     "18.1.0.22B83",
	}
}

// withDefaults fills empty fields from DefaultIdentity.
func (i Identity) withDefaults() Identity {
	d := DefaultIdentity()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&i.DesktopUserAgent, d.DesktopUserAgent)
	fill(&i.MobileUserAgent, d.MobileUserAgent)
	fill(&i.AcceptLanguage, d.AcceptLanguage)
	fill(&i.ConsentCookie, d.ConsentCookie)
	fill(&i.ClientName, d.ClientName)
	fill(&i.ClientNameID, d.ClientNameID)
	fill(&i.ClientVersion, d.ClientVersion)
	fill(&i.DeviceMake, d.DeviceMake)
	fill(&i.DeviceModel, d.DeviceModel)
	fill(&i.OSName, d.OSName)
	fill(&i.OSVersion, d.OSVersion)
	return i
}

type Config struct {
	BaseURL  string
	Identity Identity

	Timeout        time.Duration // whole request timeout for pages, player API and playlists
	SegmentTimeout time.Duration // response header timeout for segments
	Proxy          string        // optional: http(s):// or socks5:// proxy for all upstream traffic

	RateLimit float64 // page and player API requests per second, 0 disables
	RateBurst int

	MaxBodySize int64 // limit for buffered bodies (pages, playlists)

	// Transport replaces the default transport; used in tests.
	Transport http.RoundTripper
}

func (c Config) withDefaultValues() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.youtube.com"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SegmentTimeout == 0 {
		c.SegmentTimeout = 15 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 16 << 20
	}
	// ensure it does not end with /
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.Identity = c.Identity.withDefaults()
	return c
}

// Page is a fetched HTML document together with the URL it was finally
// served from, after redirects.
type Page struct {
	URL  string
	Body string
}
