package model

// RunDiff describes how the pages of a seed changed between two runs.
type RunDiff struct {
	// OldRunID and NewRunID identify the compared runs.
	OldRunID string `json:"old_run_id"`
	NewRunID string `json:"new_run_id"`

	// Added are URLs fetched only in the newer run.
	Added []string `json:"added"`

	// Removed are URLs fetched only in the older run.
	Removed []string `json:"removed"`

	// Changed are URLs fetched in both runs whose content hash differs.
	Changed []string `json:"changed"`

	// Unchanged counts URLs fetched in both runs with equal hashes.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether any page was added, removed or changed.
func (d RunDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// CompareRuns compares the fetched pages of older and newer.
// Added and Changed follow newer's visitation order, Removed follows older's.
func CompareRuns(older, newer *CrawlRun) RunDiff {
	d := RunDiff{
		OldRunID: older.ID,
		NewRunID: newer.ID,
		Added:    make([]string, 0),
		Removed:  make([]string, 0),
		Changed:  make([]string, 0),
	}

	oldHashes := make(map[string]string, len(older.Pages))
	for _, p := range older.Pages {
		oldHashes[p.URL] = p.Hash
	}
	newURLs := make(map[string]struct{}, len(newer.Pages))

	for _, p := range newer.Pages {
		newURLs[p.URL] = struct{}{}
		h, ok := oldHashes[p.URL]
		switch {
		case !ok:
			d.Added = append(d.Added, p.URL)
		case h != p.Hash:
			d.Changed = append(d.Changed, p.URL)
		default:
			d.Unchanged++
		}
	}
	for _, p := range older.Pages {
		if _, ok := newURLs[p.URL]; !ok {
			d.Removed = append(d.Removed, p.URL)
		}
	}

	return d
}
