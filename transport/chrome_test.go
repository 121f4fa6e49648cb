package transport

import (
	"net/http/cookiejar"
	"testing"
	"time"

	tls "github.com/refraction-networking/utls"
)

func TestChromeSpecIsHTTP1Only(t *testing.T) {
	if chromeH1Spec == nil {
		t.Skip("utls could not build a Chrome spec")
	}
	for _, ext := range chromeH1Spec.Extensions {
		alpn, ok := ext.(*tls.ALPNExtension)
		if !ok {
			continue
		}
		if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
			t.Fatalf("ALPN = %v, want [http/1.1]", alpn.AlpnProtocols)
		}
		return
	}
	t.Fatal("no ALPN extension in spec")
}

func TestNewClient(t *testing.T) {
	jar, _ := cookiejar.New(nil)
	c := NewClient(Options{Timeout: 5 * time.Second, Jar: jar})
	if c.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.Timeout)
	}
	if c.Jar != jar {
		t.Error("jar not installed")
	}
	if c.Transport == nil {
		t.Fatal("transport not set")
	}
	if c.CheckRedirect == nil {
		t.Error("redirect policy not set")
	}
}
