package hlsproxy

import (
	"net/http"
	"strings"

	"github.com/hlsrelay/hlsrelay/internal/metrics"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

// Level tells which kind of playlist is being rewritten.
type Level int

const (
	Master Level = iota
	Variant
)

// Param is the query parameter that URLs found at this level are rewritten
// into. Master entries point at variant playlists, variant entries at
// segments.
func (l Level) Param() string {
	if l == Master {
		return "variant"
	}
	return "url"
}

func (l Level) String() string {
	if l == Master {
		return "master"
	}
	return "variant"
}

type Config struct {
	PublicURL  string // optional: absolute origin prepended to rewritten URLs
	BufferSize int    // segment copy buffer

	Client  *upstream.ClientCtx
	Metrics *metrics.Metrics
}

func (c Config) withDefaultValues() Config {
	if c.BufferSize == 0 {
		c.BufferSize = 32 << 10
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	return c
}

type Manager interface {
	ServePlaylist(w http.ResponseWriter, r *http.Request, level Level, source string) error
	ServeSegment(w http.ResponseWriter, r *http.Request, target string) error
}
