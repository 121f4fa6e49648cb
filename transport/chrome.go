// Package transport builds HTTP clients that present a Chrome TLS
// fingerprint. Both the analytics relay and the static detail fetcher use
// it so their handshakes look like the browser the rest of a run drives.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"
)

// DefaultUserAgent matches the fingerprint below.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome ClientHello with ALPN restricted to http/1.1.
var chromeH1Spec *tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// http.Transport cannot speak h2 over a utls conn.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = &spec
}

// Options configures NewClient.
type Options struct {
	Timeout     time.Duration
	DialTimeout time.Duration
	Jar         http.CookieJar
}

// NewClient returns an http.Client with a Chrome-like TLS handshake.
func NewClient(opts Options) *http.Client {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       opts.Jar,
		Transport: newTransport(dialTimeout),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

func newTransport(dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   false,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: dialTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)

			var tlsConn *tls.UConn
			if chromeH1Spec != nil {
				tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
				if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
					conn.Close()
					return nil, fmt.Errorf("transport: apply tls spec: %w", err)
				}
			} else {
				tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloChrome_Auto)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
	}
}
