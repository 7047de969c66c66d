package serve

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlsrelay/hlsrelay/internal/server"
	"github.com/hlsrelay/hlsrelay/modules/hlsproxy"
	"github.com/hlsrelay/hlsrelay/modules/player"
	"github.com/hlsrelay/hlsrelay/pkg/locator"
	"github.com/hlsrelay/hlsrelay/pkg/upstream"
)

type Config struct {
	Server server.Config

	PublicURL string

	BaseURL        string
	Timeout        time.Duration
	SegmentTimeout time.Duration
	Proxy          string
	Rate           float64
	Burst          int
	Strategies     []string

	Identity upstream.Identity
}

// identity flags, in the order of upstream.Identity
var identityFlags = []struct {
	name  string
	usage string
	value func(upstream.Identity) string
	set   func(*upstream.Identity, string)
}{
	{"desktop-user-agent", "user agent for pages, playlists and segments",
		func(i upstream.Identity) string { return i.DesktopUserAgent }, func(i *upstream.Identity, v string) { i.DesktopUserAgent = v }},
	{"mobile-user-agent", "user agent for the player API",
		func(i upstream.Identity) string { return i.MobileUserAgent }, func(i *upstream.Identity, v string) { i.MobileUserAgent = v }},
	{"accept-language", "Accept-Language sent upstream",
		func(i upstream.Identity) string { return i.AcceptLanguage }, func(i *upstream.Identity, v string) { i.AcceptLanguage = v }},
	{"consent-cookie", "cookie that skips the consent interstitial",
		func(i upstream.Identity) string { return i.ConsentCookie }, func(i *upstream.Identity, v string) { i.ConsentCookie = v }},
	{"client-name", "player API client name",
		func(i upstream.Identity) string { return i.ClientName }, func(i *upstream.Identity, v string) { i.ClientName = v }},
	{"client-name-id", "player API numeric client name",
		func(i upstream.Identity) string { return i.ClientNameID }, func(i *upstream.Identity, v string) { i.ClientNameID = v }},
	{"client-version", "player API client version",
		func(i upstream.Identity) string { return i.ClientVersion }, func(i *upstream.Identity, v string) { i.ClientVersion = v }},
	{"device-make", "player API device make",
		func(i upstream.Identity) string { return i.DeviceMake }, func(i *upstream.Identity, v string) { i.DeviceMake = v }},
	{"device-model", "player API device model",
		func(i upstream.Identity) string { return i.DeviceModel }, func(i *upstream.Identity, v string) { i.DeviceModel = v }},
	{"os-name", "player API operating system",
		func(i upstream.Identity) string { return i.OSName }, func(i *upstream.Identity, v string) { i.OSName = v }},
	{"os-version", "player API operating system version",
		func(i upstream.Identity) string { return i.OSVersion }, func(i *upstream.Identity, v string) { i.OSVersion = v }},
}

func (c Config) Init(cmd *cobra.Command) error {
	if err := c.Server.Init(cmd); err != nil {
		return err
	}

	cmd.PersistentFlags().String("public-url", "", "public origin of the relay used in rewritten playlists, request path only if empty")
	if err := viper.BindPFlag("public-url", cmd.PersistentFlags().Lookup("public-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("upstream.base-url", "https://www.youtube.com", "upstream site")
	if err := viper.BindPFlag("upstream.base-url", cmd.PersistentFlags().Lookup("upstream.base-url")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("upstream.timeout", 5*time.Second, "timeout of page, player API and playlist requests")
	if err := viper.BindPFlag("upstream.timeout", cmd.PersistentFlags().Lookup("upstream.timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("upstream.segment-timeout", 15*time.Second, "time to wait for segment response headers")
	if err := viper.BindPFlag("upstream.segment-timeout", cmd.PersistentFlags().Lookup("upstream.segment-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("upstream.proxy", "", "outbound proxy, http(s):// or socks5://")
	if err := viper.BindPFlag("upstream.proxy", cmd.PersistentFlags().Lookup("upstream.proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().Float64("upstream.rate", 0, "page and player API requests per second, unlimited if 0")
	if err := viper.BindPFlag("upstream.rate", cmd.PersistentFlags().Lookup("upstream.rate")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("upstream.burst", 1, "burst of the upstream rate limit")
	if err := viper.BindPFlag("upstream.burst", cmd.PersistentFlags().Lookup("upstream.burst")); err != nil {
		return err
	}

	cmd.PersistentFlags().StringSlice("upstream.strategies", locator.DefaultStrategies, "manifest locator strategies in order (api, page)")
	if err := viper.BindPFlag("upstream.strategies", cmd.PersistentFlags().Lookup("upstream.strategies")); err != nil {
		return err
	}

	defaults := upstream.DefaultIdentity()
	for _, flag := range identityFlags {
		name := "identity." + flag.name
		cmd.PersistentFlags().String(name, flag.value(defaults), flag.usage)
		if err := viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) Set() {
	c.Server.Set()

	c.PublicURL = viper.GetString("public-url")

	c.BaseURL = viper.GetString("upstream.base-url")
	c.Timeout = viper.GetDuration("upstream.timeout")
	c.SegmentTimeout = viper.GetDuration("upstream.segment-timeout")
	c.Proxy = viper.GetString("upstream.proxy")
	c.Rate = viper.GetFloat64("upstream.rate")
	c.Burst = viper.GetInt("upstream.burst")
	c.Strategies = viper.GetStringSlice("upstream.strategies")

	c.Identity = upstream.Identity{}
	for _, flag := range identityFlags {
		flag.set(&c.Identity, viper.GetString("identity."+flag.name))
	}
}

func (c *Config) Relay() *hlsproxy.Config {
	return &hlsproxy.Config{
		PublicURL:  c.PublicURL,
		Strategies: c.Strategies,
		Upstream: upstream.Config{
			BaseURL:        c.BaseURL,
			Identity:       c.Identity,
			Timeout:        c.Timeout,
			SegmentTimeout: c.SegmentTimeout,
			Proxy:          c.Proxy,
			RateLimit:      c.Rate,
			RateBurst:      c.Burst,
		},
	}
}

func (c *Config) Player() *player.Config {
	return &player.Config{
		PublicURL: c.PublicURL,
	}
}
