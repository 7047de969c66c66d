package hlsproxy

import (
	"github.com/hlsrelay/hlsrelay/pkg/locator"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

type Config struct {
	PublicURL  string
	Strategies []string

	Upstream upstream.Config
}

func (c Config) withDefaultValues() Config {
	if len(c.Strategies) == 0 {
		c.Strategies = locator.DefaultStrategies
	}
	return c
}

// Kind of a relay request, decided by its query.
type Kind int

const (
	KindUsage Kind = iota
	KindMaster
	KindVariant
	KindSegment
)

func (k Kind) String() string {
	switch k {
	case KindMaster:
		return "master"
	case KindVariant:
		return "variant"
	case KindSegment:
		return "segment"
	}
	return "usage"
}

type Request struct {
	Kind       Kind
	Identifier string // first path segment, may be empty for variants and segments
	Target     string // upstream URL for variants and segments
}
