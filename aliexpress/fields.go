package aliexpress

import (
	"regexp"
	"strconv"
	"strings"
)

const soldMarker = "sold"

var strictDecimal = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ExtractRatingAndSales parses a card's label text such as
// "4.8 1,234 sold" into its rating and sales count.
//
// The text is cut at the last "sold". The token right before the cut is
// the sales count, returned verbatim. The token before that is the rating
// when it is a plain decimal within [1, 5]. Without the marker both
// results are nil.
func ExtractRatingAndSales(info string) (rating, sales *string) {
	idx := strings.LastIndex(info, soldMarker)
	if idx == -1 {
		return nil, nil
	}
	tokens := strings.Fields(info[:idx])
	if len(tokens) == 0 {
		return nil, nil
	}

	s := tokens[len(tokens)-1]
	sales = &s

	if len(tokens) >= 2 {
		candidate := tokens[len(tokens)-2]
		if validRating(candidate) {
			rating = &candidate
		}
	}
	return rating, sales
}

func validRating(s string) bool {
	if !strictDecimal.MatchString(s) {
		return false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return v >= 1 && v <= 5
}
