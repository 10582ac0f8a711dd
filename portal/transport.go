package portal

import "net/http"

const userAgent = "Mozilla/5.0 (DesQTA)"

// defaultHeaderTransport stamps the browser-like defaults the portal expects
// onto every request.
type defaultHeaderTransport struct {
	base http.RoundTripper
}

func (t *defaultHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	return t.base.RoundTrip(req)
}
