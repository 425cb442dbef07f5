package fetch

import (
	"bytes"
	"net/http"
	"strings"
)

// Markers that appear in Cloudflare challenge interstitials. Checked only
// on blockable statuses, so an article that merely mentions one of these
// strings never trips the detector.
var challengeMarkers = [][]byte{
	[]byte("cf-browser-verification"),
	[]byte("cf-chl-"),
	[]byte("Checking your browser before accessing"),
	[]byte("Attention Required! | Cloudflare"),
}

// isChallenge reports whether a response looks like a Cloudflare anti-bot
// page rather than an answer from the origin: a 403 or 503 served by
// cloudflare, or carrying one of the known challenge markers in the body.
func isChallenge(statusCode int, serverHeader string, body []byte) bool {
	if statusCode != http.StatusForbidden && statusCode != http.StatusServiceUnavailable {
		return false
	}
	if strings.Contains(strings.ToLower(serverHeader), "cloudflare") {
		return true
	}
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}
