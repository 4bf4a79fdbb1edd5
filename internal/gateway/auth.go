package gateway

import "net/http"

// authTransport attaches the vendor bearer token to every outbound request.
type authTransport struct {
	token string
	next  http.RoundTripper
}

func newAuthTransport(token string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &authTransport{token: token, next: next}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		clone := req.Clone(req.Context())
		clone.Header.Set("Authorization", "Bearer "+t.token)
		return t.next.RoundTrip(clone)
	}
	return t.next.RoundTrip(req)
}
