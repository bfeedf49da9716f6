package model

// Corpus is the ordered result of a crawl: URL to HTML, in visitation order.
// The zero value is an empty corpus ready to use.
type Corpus struct {
	pages []Page
	index map[string]int
}

// NewCorpus builds a Corpus from pages in the given order.
// Later pages with a URL already present are ignored.
func NewCorpus(pages ...Page) Corpus {
	var c Corpus
	for _, p := range pages {
		c.add(p)
	}
	return c
}

func (c *Corpus) add(p Page) bool {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, ok := c.index[p.URL]; ok {
		return false
	}
	c.index[p.URL] = len(c.pages)
	c.pages = append(c.pages, p)
	return true
}

// Len returns the number of pages.
func (c Corpus) Len() int {
	return len(c.pages)
}

// HTML returns the HTML stored for url and whether it is present.
func (c Corpus) HTML(url string) (string, bool) {
	i, ok := c.index[url]
	if !ok {
		return "", false
	}
	return c.pages[i].HTML, true
}

// Page returns the page stored for url and whether it is present.
func (c Corpus) Page(url string) (Page, bool) {
	i, ok := c.index[url]
	if !ok {
		return Page{}, false
	}
	return c.pages[i], true
}

// URLs returns the page URLs in visitation order.
func (c Corpus) URLs() []string {
	urls := make([]string, len(c.pages))
	for i, p := range c.pages {
		urls[i] = p.URL
	}
	return urls
}

// Pages returns a copy of the pages in visitation order.
func (c Corpus) Pages() []Page {
	out := make([]Page, len(c.pages))
	copy(out, c.pages)
	return out
}
