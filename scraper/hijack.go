package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configToProto maps config names to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are third-party beacons the marketplace pages load. None
// of them carry product data.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":           {},
	"googlesyndication.com":     {},
	"google-analytics.com":      {},
	"googletagmanager.com":      {},
	"facebook.net":              {},
	"criteo.com":                {},
	"criteo.net":                {},
	"hotjar.com":                {},
	"mmstat.com":                {},
	"arms-retcode.aliyuncs.com": {},
}

// isTrackerDomain checks host and each parent domain against the list.
func isTrackerDomain(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blockedTypes builds the lookup set for the configured resource names.
// Unknown names are ignored.
func blockedTypes(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// shouldBlock decides a single request.
func shouldBlock(blocked map[proto.NetworkResourceType]struct{}, rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := blocked[rt]; ok {
		return true
	}
	if u, err := url.Parse(rawURL); err == nil && isTrackerDomain(u.Hostname()) {
		return true
	}
	return false
}

// setupHijack blocks the configured resource types and tracker requests on
// page. Image elements keep their src attributes, so list extraction is
// unaffected. The returned router must be stopped by the caller.
func setupHijack(page *rod.Page, names []string) *rod.HijackRouter {
	blocked := blockedTypes(names)

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blocked, ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
