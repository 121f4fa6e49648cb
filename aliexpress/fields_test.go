package aliexpress

import "testing"

func strOrNil(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestExtractRatingAndSales(t *testing.T) {
	tests := []struct {
		name       string
		info       string
		wantRating string
		wantSales  string
	}{
		{"no marker", "4.8 Free shipping", "<nil>", "<nil>"},
		{"empty", "", "<nil>", "<nil>"},
		{"marker only", "sold", "<nil>", "<nil>"},
		{"rating and sales", "4.8 1,234 sold", "4.8", "1,234"},
		{"integer rating", "5 10 sold", "5", "10"},
		{"lower bound", "1 3 sold", "1", "3"},
		{"rating above range", "5.1 200 sold", "<nil>", "200"},
		{"rating below range", "0.9 200 sold", "<nil>", "200"},
		{"rating not strict decimal", "4.5x 200 sold", "<nil>", "200"},
		{"rating with sign", "+4.5 200 sold", "<nil>", "200"},
		{"trailing dot", "4. 200 sold", "<nil>", "200"},
		{"sales only", "10,000+ sold", "<nil>", "10,000+"},
		{"prefix text", "Choice 4.7 5,000+ sold Free shipping", "4.7", "5,000+"},
		{"marker glued to count", "4.2 300sold", "4.2", "300"},
		{"last marker wins", "soldier toy 4.6 88 sold", "4.6", "88"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, sales := ExtractRatingAndSales(tt.info)
			if got := strOrNil(rating); got != tt.wantRating {
				t.Errorf("rating = %s, want %s", got, tt.wantRating)
			}
			if got := strOrNil(sales); got != tt.wantSales {
				t.Errorf("sales = %s, want %s", got, tt.wantSales)
			}
		})
	}
}
