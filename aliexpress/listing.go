package aliexpress

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/aliscout/models"
)

var itemIDPattern = regexp.MustCompile(`/item/(\d+)\.html`)

var (
	anchorMatcher  = cascadia.MustCompile("a")
	imageMatcher   = cascadia.MustCompile("img")
	headingMatcher = cascadia.MustCompile("h3")
	labelMatcher   = cascadia.MustCompile("span")
)

// ListScraper turns a rendered result page into Products.
type ListScraper struct {
	// MaxItems truncates the result. Zero keeps every card.
	MaxItems int
}

// Scrape reads the card list out of rawHTML. pageURL resolves relative
// links and image sources.
//
// Cards are the direct div children of the card list. A card without an
// anchor is skipped. Inside the anchor, the first element child holds the
// images and the second holds the text blocks: headings form the title,
// inline labels form the info text. The only error is a missing card list.
func (s ListScraper) Scrape(rawHTML, pageURL string) ([]*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "failed to parse result page", err)
	}

	container := doc.Find(SelectorCardList).First()
	if container.Length() == 0 {
		return nil, models.NewScrapeError(models.ErrCodeNotFound,
			"product list not found (id=card-list)", nil)
	}

	base, _ := url.Parse(pageURL)

	products := []*models.Product{}
	container.ChildrenFiltered("div").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if s.MaxItems > 0 && len(products) >= s.MaxItems {
			return false
		}
		if p := parseCard(card, base); p != nil {
			products = append(products, p)
		}
		return true
	})
	return products, nil
}

func parseCard(card *goquery.Selection, base *url.URL) *models.Product {
	link := card.FindMatcher(anchorMatcher).First()
	if link.Length() == 0 {
		return nil
	}

	children := link.Children()
	media := children.Eq(0)
	body := children.Eq(1)

	images := []string{}
	media.FindMatcher(imageMatcher).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			images = append(images, resolve(base, src))
		}
	})

	var title, info []string
	body.Children().Each(func(_ int, block *goquery.Selection) {
		title = appendTexts(title, block.FindMatcher(headingMatcher))
		info = appendTexts(info, block.FindMatcher(labelMatcher))
	})

	p := &models.Product{
		Images: images,
		Title:  strings.Join(title, " "),
		Info:   strings.Join(info, " "),
	}
	if href, ok := link.Attr("href"); ok && href != "" {
		p.URL = resolve(base, href)
	}
	if p.Info != "" {
		p.Rating, p.SoldCount = ExtractRatingAndSales(p.Info)
	}
	p.ID = ItemID(p.URL)
	return p
}

// ItemID returns the numeric id in a /item/<digits>.html URL, or "".
func ItemID(rawURL string) string {
	m := itemIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

func appendTexts(dst []string, sel *goquery.Selection) []string {
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			dst = append(dst, text)
		}
	})
	return dst
}

// resolve makes ref absolute against base. Protocol-relative references
// are common on the CDN and become https when there is no base.
func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil || base.Scheme == "" {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ref
	}
	return base.ResolveReference(u).String()
}
