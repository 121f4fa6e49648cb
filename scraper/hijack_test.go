package scraper

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"WWW.GOOGLE-ANALYTICS.COM", true},
		{"g.mmstat.com", true},
		{"www.aliexpress.com", false},
		{"ae01.alicdn.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isTrackerDomain(tt.host); got != tt.want {
			t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestShouldBlock(t *testing.T) {
	blocked := blockedTypes([]string{"Image", "Font", "Bogus"})
	if len(blocked) != 2 {
		t.Fatalf("blocked set = %v", blocked)
	}

	tests := []struct {
		name string
		rt   proto.NetworkResourceType
		url  string
		want bool
	}{
		{"image", proto.NetworkResourceTypeImage, "https://ae01.alicdn.com/a.jpg", true},
		{"font", proto.NetworkResourceTypeFont, "https://www.aliexpress.com/f.woff2", true},
		{"document", proto.NetworkResourceTypeDocument, "https://www.aliexpress.com/item/1.html", false},
		{"script", proto.NetworkResourceTypeScript, "https://assets.alicdn.com/app.js", false},
		{"tracker script", proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js", true},
	}
	for _, tt := range tests {
		if got := shouldBlock(blocked, tt.rt, tt.url); got != tt.want {
			t.Errorf("%s: shouldBlock = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRefererFor(t *testing.T) {
	if got := refererFor("https://www.aliexpress.com/item/1.html"); got != "https://www.google.com/search?q=www.aliexpress.com" {
		t.Errorf("refererFor = %q", got)
	}
	if got := refererFor("not a url"); got != "" {
		t.Errorf("refererFor(bad) = %q", got)
	}
}
