package hlsproxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hlsrelay/hlsrelay/pkg/resolver"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrReserved   = errors.New("reserved path")
)

// first path segments routed elsewhere, never taken for a channel name
var reservedSegments = map[string]struct{}{
	"api":     {},
	"player":  {},
	"ping":    {},
	"metrics": {},
	"debug":   {},
}

func badRequest(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, a...))
}

// Classify decides what a relay request asks for. A url parameter wins over
// variant, and both win over the path.
func Classify(r *http.Request) (Request, error) {
	return classify(r.URL.Path, r)
}

// classify takes the identifier from path, the request path below the
// module mount point.
func classify(path string, r *http.Request) (Request, error) {
	query := r.URL.Query()
	identifier := firstSegment(path)

	for _, item := range []struct {
		param string
		kind  Kind
	}{
		{"url", KindSegment},
		{"variant", KindVariant},
	} {
		if !query.Has(item.param) {
			continue
		}

		target := query.Get(item.param)
		if err := validateTarget(target); err != nil {
			return Request{}, badRequest("invalid %s parameter: %v", item.param, err)
		}

		return Request{Kind: item.kind, Identifier: identifier, Target: target}, nil
	}

	if identifier == "" {
		if r.URL.RawQuery == "" {
			return Request{Kind: KindUsage}, nil
		}
		return Request{}, badRequest("missing stream identifier")
	}

	if _, ok := reservedSegments[identifier]; ok {
		return Request{}, fmt.Errorf("%w: /%s", ErrReserved, identifier)
	}

	if !resolver.IsIdentifier(identifier) {
		return Request{}, badRequest("invalid stream identifier %q", identifier)
	}

	return Request{Kind: KindMaster, Identifier: identifier}, nil
}

func firstSegment(p string) string {
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}

func validateTarget(target string) error {
	if target == "" {
		return errors.New("empty")
	}

	u, err := url.Parse(target)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}

	return nil
}
