/*
target.go - The active webhook destination

PURPOSE:
  Holds the URL agreements are posted to. It starts as the placeholder and is
  replaced once the config endpoint answers. Reads never block, so a user who
  confirms before the config fetch resolves sees the placeholder, and the
  submitter rejects it as unconfigured.

SEE ALSO:
  - loader.go: Fills the target from GET /api/config
  - submitter.go: Reads the target on every submission
*/
package webhook

import (
	"strings"
	"sync/atomic"
)

// PlaceholderURL is the fallback used until a real URL is configured.
const PlaceholderURL = "https://tu-webhook-n8n.com/webhook/acuerdos-pago"

// Target is safe for concurrent use.
type Target struct {
	url atomic.Pointer[string]
}

// NewTarget creates a target. An empty initial URL means the placeholder.
func NewTarget(initial string) *Target {
	t := &Target{}
	t.Set(initial)
	return t
}

func (t *Target) URL() string {
	if p := t.url.Load(); p != nil {
		return *p
	}
	return PlaceholderURL
}

func (t *Target) Set(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		url = PlaceholderURL
	}
	t.url.Store(&url)
}

// Configured reports whether the URL is usable for a real submission.
func (t *Target) Configured() bool {
	return IsConfigured(t.URL())
}

// IsConfigured is false for empty and placeholder URLs.
func IsConfigured(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && url != PlaceholderURL
}
