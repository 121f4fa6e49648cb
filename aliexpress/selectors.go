package aliexpress

// Markup the pipeline binds to. When the host page changes these, list and
// detail extraction degrade to empty fields; only the card list container
// and the search input are hard requirements.
const (
	SelectorCardList = "#card-list"

	SelectorReviewer    = ".reviewer--wrap--vGS7G6P"
	SelectorReviewerAlt = `[data-pl="product-reviewer"]`

	SelectorRating    = ".reviewer--rating--xrWWFzx strong"
	SelectorRatingAlt = `a[href*="nav-review"] strong`
	SelectorReviews   = ".reviewer--reviews--cx7Zs_V"
	SelectorSold      = ".reviewer--sold--ytPeoEy"

	// SelectorParentButton is searched inside the search input's parent.
	SelectorParentButton = `input[type="button"], button`
)

// SearchInputSelectors locate the search box. The second id is a
// misspelling the site has shipped and is kept for compatibility.
var SearchInputSelectors = []string{"#search-words", "#search-wrods"}

// SubmitButtonSelectors are tried in order; the first match is clicked.
var SubmitButtonSelectors = []string{
	".search--submit--2VTbd-T",
	".search--newSubmit--3BlVRKw",
	"input.search-button",
	"button.search-button",
	`input[type="submit"]`,
	`button[type="submit"]`,
}

// Labels stripped from detail-page counters.
const (
	reviewsLabel = "Reviews"
	soldLabel    = "sold"
)

// Document ready states that allow querying.
const (
	readyInteractive = "interactive"
	readyComplete    = "complete"
)
