package hlsproxy

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/grafov/m3u8"
)

var urlLineRegex = regexp.MustCompile(`^https?://\S+$`)

// PlaylistUrlWalk calls replace for every line that is a bare absolute URL.
// Line count, line endings and all other lines are kept as they are.
func PlaylistUrlWalk(doc string, replace func(string) string) string {
	lines := strings.Split(doc, "\n")

	for i, line := range lines {
		text := strings.TrimSuffix(line, "\r")
		if !urlLineRegex.MatchString(text) {
			continue
		}

		lines[i] = replace(text) + line[len(text):]
	}

	return strings.Join(lines, "\n")
}

// Rewrite points every absolute URL line of the playlist back at the relay:
// {proxyBase}?{param}={escaped url}.
func Rewrite(doc string, proxyBase string, param string) string {
	return PlaylistUrlWalk(doc, func(u string) string {
		return proxyBase + "?" + param + "=" + url.QueryEscape(u)
	})
}

// ProxyBase is the URL rewritten entries refer to, the current request path
// optionally prefixed with the public origin of the relay.
func ProxyBase(publicURL string, r *http.Request) string {
	return publicURL + r.URL.EscapedPath()
}

// Describe summarizes a playlist for debug logs.
func Describe(doc string) (string, error) {
	p, listType, err := m3u8.DecodeFrom(strings.NewReader(doc), false)
	if err != nil {
		return "", err
	}

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		return fmt.Sprintf("master with %d variants", len(master.Variants)), nil
	case m3u8.MEDIA:
		media := p.(*m3u8.MediaPlaylist)
		return fmt.Sprintf("media with %d segments from sequence %d, closed=%t", media.Count(), media.SeqNo, media.Closed), nil
	}

	return "unknown playlist", nil
}
