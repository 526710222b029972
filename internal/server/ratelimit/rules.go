package ratelimit

import (
	"strings"
	"time"
)

// Rule groups.
const (
	GroupGenerate = "generate"
	GroupHealth   = "health"
	GroupDefault  = "default"
)

// Day is the window of the generation quota.
const Day = 24 * time.Hour

// Route is a method and path a rule applies to. A path ending in "/" matches
// every path below it.
type Route struct {
	Method string
	Path   string
}

func (rt Route) exact(method, path string) bool {
	return rt.Method == method && rt.Path == path
}

func (rt Route) prefix(method, path string) bool {
	return rt.Method == method && strings.HasSuffix(rt.Path, "/") && strings.HasPrefix(path, rt.Path)
}

// Rule is a quota of Limit requests per Window. Every route of a rule draws from
// the same bucket, one bucket per client.
type Rule struct {
	Group  string
	Limit  int // 0 means unlimited
	Window time.Duration
	Burst  int // bucket capacity, Limit when 0
	Routes []Route
}

// Unlimited reports whether requests under the rule are never counted.
func (r Rule) Unlimited() bool {
	return r.Limit <= 0 || r.Window <= 0
}

func (r Rule) capacity() float64 {
	if r.Burst > 0 {
		return float64(r.Burst)
	}
	return float64(r.Limit)
}

// Config holds the limiter rules.
type Config struct {
	Enabled bool
	// Default applies to requests no rule claims.
	Default         Rule
	Rules           []Rule
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	CleanupInterval time.Duration
}

// Match returns the rule for a request. Exact routes win over prefixes.
func (c *Config) Match(method, path string) Rule {
	for _, rule := range c.Rules {
		for _, rt := range rule.Routes {
			if rt.exact(method, path) {
				return rule
			}
		}
	}
	for _, rule := range c.Rules {
		for _, rt := range rule.Routes {
			if rt.prefix(method, path) {
				return rule
			}
		}
	}
	return c.Default
}

// Settings are the user facing knobs, normally populated from the service config.
type Settings struct {
	Enabled          bool
	GeneratePerDay   int
	DefaultPerMinute int
	APIPrefix        string
	Whitelist        []string
	Blacklist        []string
}

// NewConfig builds the limiter rules: a daily quota shared by every deck
// generating route, an unlimited health check and a per-minute default.
func NewConfig(s Settings) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled: true,
		Default: Rule{Group: GroupDefault, Limit: s.DefaultPerMinute, Window: time.Minute},
		Rules: []Rule{
			{Group: GroupHealth, Routes: []Route{{Method: "GET", Path: "/health"}}},
			{Group: GroupGenerate, Limit: s.GeneratePerDay, Window: Day, Routes: GenerateRoutes(s.APIPrefix)},
		},
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		CleanupInterval: 5 * time.Minute,
	}
}

// GenerateRoutes are the routes that spend model calls.
func GenerateRoutes(apiPrefix string) []Route {
	apiPrefix = strings.TrimRight(apiPrefix, "/")
	return []Route{
		{Method: "POST", Path: apiPrefix + "/generate"},
		{Method: "POST", Path: apiPrefix + "/generate/stream"},
		{Method: "POST", Path: "/pitch"},
	}
}

func toSet(list []string) map[string]bool {
	result := make(map[string]bool, len(list))
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
