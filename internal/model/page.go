package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// MaxPageSize is the maximum size of raw page content to store.
// Larger pages are truncated to this size.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page is a successfully fetched page.
// A Page is created once when a fetch succeeds and is not modified afterwards.
type Page struct {
	// URL is the absolute URL the page was fetched from.
	URL string `json:"url"`

	// HTML is the raw (possibly browser-rendered) HTML of the page.
	HTML string `json:"html,omitempty"`

	// Title is the text of the <title> element, if any.
	Title string `json:"title,omitempty"`

	// Hash is the SHA-256 hash of HTML.
	// Used for change detection between runs.
	Hash string `json:"hash"`

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// NewPage creates a Page for the given URL and HTML.
// The HTML is truncated to MaxPageSize and hashed.
func NewPage(url, html string) Page {
	p := Page{
		URL:       url,
		HTML:      html,
		FetchedAt: time.Now(),
	}
	p.truncate()
	p.ComputeHash()
	return p
}

// ComputeHash calculates and sets the SHA-256 hash of the page's HTML.
func (p *Page) ComputeHash() {
	if p.HTML == "" {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.HTML))
	p.Hash = hex.EncodeToString(hash[:])
}

// Size returns the size of the stored HTML in bytes.
func (p Page) Size() int {
	return len(p.HTML)
}

// truncate cuts HTML to at most MaxPageSize bytes on a rune boundary.
func (p *Page) truncate() {
	if len(p.HTML) <= MaxPageSize {
		return
	}
	cut := MaxPageSize
	for cut > 0 && !utf8.RuneStart(p.HTML[cut]) {
		cut--
	}
	p.HTML = p.HTML[:cut]
}
