// Package upstreamtest routes upstream traffic of any host to a local test
// server, so tests can use realistic upstream URLs.
package upstreamtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
)

type transport struct {
	target *url.URL
	next   http.RoundTripper
}

// Transport returns a RoundTripper sending every request to srv while
// keeping path and query. The original request is reported on the response
// so that redirect targets stay visible to callers.
func Transport(srv *httptest.Server) http.RoundTripper {
	target, err := url.Parse(srv.URL)
	if err != nil {
		panic(err)
	}

	return &transport{
		target: target,
		next:   srv.Client().Transport,
	}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = req.URL.Host

	resp, err := t.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	resp.Request = req
	return resp, nil
}
