package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// excludedExtensions are path suffixes of resources that are not HTML pages.
var excludedExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".tar", ".gz", ".exe", ".dmg", ".pkg",
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".ico",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".css", ".js", ".xml", ".json",
}

// blockedKeywords are substrings of URLs that lead to authentication,
// account management, commerce, or API/feed endpoints.
var blockedKeywords = []string{
	"logout", "login", "signin", "signup", "register",
	"admin", "dashboard", "profile", "settings",
	"cart", "checkout", "payment", "billing",
	"download", "upload", "api", "feed",
}

// IsAdmissible reports whether candidate may be added to the frontier.
// base is the absolute URL of the page the candidate was found on; candidate
// must already be resolved against it.
//
// The filter favours precision: it may reject valid pages, but it never
// admits a URL matching one of the rejection rules. It has no side effects.
func IsAdmissible(candidate, base string, sameDomainOnly bool) bool {
	if candidate == "" ||
		strings.HasPrefix(candidate, "#") ||
		strings.HasPrefix(candidate, "mailto:") ||
		strings.HasPrefix(candidate, "tel:") {
		return false
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if isSameDocument(candidate, base) {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	lower := strings.ToLower(candidate)
	for _, keyword := range blockedKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}

	if sameDomainOnly {
		return u.Host == Domain(base)
	}

	return true
}

// isSameDocument reports whether candidate is a fragment reference into the
// base document, i.e. an anchor that only carries a fragment marker.
func isSameDocument(candidate, base string) bool {
	doc, _, found := strings.Cut(candidate, "#")
	if !found {
		return false
	}
	baseDoc, _, _ := strings.Cut(base, "#")
	return doc == baseDoc
}

// Domain returns the host component of rawURL (including any port).
// It returns an empty string for unparseable URLs.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Filter applies IsAdmissible plus optional path patterns configured per site.
// The zero value behaves exactly like IsAdmissible with sameDomainOnly false.
type Filter struct {
	// SameDomainOnly restricts admission to the base page's host.
	SameDomainOnly bool

	// IgnorePatterns are glob patterns matched against the URL path.
	// Matching URLs are rejected (e.g., "/tag/*", "*.php").
	IgnorePatterns []string

	// FollowPatterns are glob patterns matched against the URL path.
	// When set, only URLs matching at least one pattern are admitted.
	FollowPatterns []string
}

// NewFilter returns a Filter with the given domain restriction and no patterns.
func NewFilter(sameDomainOnly bool) Filter {
	return Filter{SameDomainOnly: sameDomainOnly}
}

// Admit reports whether candidate, found on base, passes every rule.
func (f Filter) Admit(candidate, base string) bool {
	if !IsAdmissible(candidate, base, f.SameDomainOnly) {
		return false
	}
	if len(f.IgnorePatterns) == 0 && len(f.FollowPatterns) == 0 {
		return true
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.IgnorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.FollowPatterns) == 0 {
		return true
	}
	for _, pattern := range f.FollowPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//   - "/docs/*" matches "/docs" and everything below it
//   - "*.php" matches any path ending in ".php"
//   - other patterns use filepath.Match, then are retried on the last segment
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
