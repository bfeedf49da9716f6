package config

import (
	"maps"
	"time"
)

// SiteConfig holds the overrides for one site.
// Unset fields leave the global value in place.
type SiteConfig struct {
	// Cookie is sent with every request, e.g. "session=abc; lang=en".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the page cap when positive.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay overrides the wait between requests, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// SameDomainOnly overrides the same-host restriction.
	SameDomainOnly *bool `yaml:"sameDomainOnly,omitempty"`

	// IgnorePatterns are glob patterns of URL paths never to crawl.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, are the only URL paths crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .pageminer configuration file.
type File struct {
	// Defaults apply to every site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps hosts (with port if non-standard, e.g. "example.com" or
	// "localhost:8080") to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the defaults merged with the entry for host.
// Headers are merged key by key; every other set field replaces the default.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := f.Defaults
	result.Headers = maps.Clone(f.Defaults.Headers)

	site, ok := f.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.MaxPages > 0 {
		result.MaxPages = site.MaxPages
	}
	if site.Delay != nil {
		result.Delay = site.Delay
	}
	if site.SameDomainOnly != nil {
		result.SameDomainOnly = site.SameDomainOnly
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}
