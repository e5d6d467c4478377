package httputil

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// NewScrapingClient returns a client for the target site. The cookie jar
// persists warm-up cookies across the session; HTTP/2 is disabled since the
// Go HTTP/2 fingerprint is distinctive.
func NewScrapingClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}
}
