package feedrun

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// EventIDForRequest keys a run request by its inputs and UTC day, so Inngest
// drops a repeated trigger for the same feed on the same day.
func EventIDForRequest(data RunRequestedEventData, day time.Time) (string, error) {
	parts := []string{day.UTC().Format("2006-01-02")}

	if data.ListingURL != "" {
		norm, err := normalizeURLForDedupe(data.ListingURL)
		if err != nil {
			return "", err
		}
		parts = append(parts, "listing="+norm)
	}

	urls := make([]string, 0, len(data.URLs))
	for _, raw := range data.URLs {
		norm, err := normalizeURLForDedupe(raw)
		if err != nil {
			return "", err
		}
		urls = append(urls, norm)
	}
	sort.Strings(urls)
	for _, u := range urls {
		parts = append(parts, "url="+u)
	}

	if p := strings.TrimSpace(data.ManifestPath); p != "" {
		parts = append(parts, "manifest="+p)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return "feedrun:" + hex.EncodeToString(sum[:]), nil
}

func normalizeURLForDedupe(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if strings.TrimSpace(u.Hostname()) == "" {
		return "", fmt.Errorf("invalid URL (missing host): %q", rawURL)
	}

	host := strings.ToLower(u.Hostname())
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}

	// tracking params and fragments do not change the product
	return "https://" + host + path, nil
}
