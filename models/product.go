package models

// Product is one item discovered in a search result list.
//
// A run hands around []*Product and the enrichment phases mutate the
// entries in place, so the slice is the single source of truth for the run.
type Product struct {
	// ID is the numeric item id taken from the URL; empty when the URL
	// does not contain /item/<digits>.html. Set once by the list scraper.
	ID string `json:"id"`

	Images []string `json:"images"`
	Title  string   `json:"title"`

	// Info is the raw label text of the card, the source for Rating and SoldCount.
	Info string `json:"info"`

	URL string `json:"url"`

	// Rating and SoldCount are nil when absent. Detail-page values
	// replace list-page values.
	Rating    *string `json:"rating"`
	SoldCount *string `json:"soldCount"`

	ReviewCount string `json:"reviewCount"`

	// AddDate comes from the analytics lookup only.
	AddDate string `json:"add_date,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
