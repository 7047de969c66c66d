package player

import "strings"

type Config struct {
	PublicURL string // optional: origin of the relay, the page origin otherwise
}

func (c Config) withDefaultValues() Config {
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	return c
}
