package http

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// NewHTTPClient creates the client used for token-endpoint and userinfo
// traffic. When proxyURL is non-empty every request goes through it;
// otherwise the standard proxy environment variables apply.
func NewHTTPClient(proxyURL string) *http.Client {
	proxy := http.ProxyFromEnvironment
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			proxy = http.ProxyURL(parsed)
		}
	}

	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy: proxy,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
