package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"igshid":  {},
	"cmpid":   {},
	"ito":     {},
}

// ItemID returns the canonical identity of a story: the sha1 of its canonical URL,
// or of the normalized title and source name when no usable URL is present.
func ItemID(sourceURL, title, sourceName string) string {
	if canonical, ok := CanonicalURL(sourceURL); ok {
		return hashHex("url:" + canonical)
	}
	key := normalizeText(title) + "|" + normalizeText(sourceName)
	return hashHex("title:" + key)
}

// CanonicalURL strips tracking noise so URL variants of one story collapse:
// scheme and host are lowercased, "www." and default ports dropped, utm_* and
// click identifiers removed, remaining parameters sorted, fragment and trailing
// slash trimmed.
func CanonicalURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") {
			continue
		}
		if _, tracked := trackingParams[lk]; tracked {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	// both schemes share one identity
	b.WriteString("https://")
	b.WriteString(host)
	path := strings.TrimRight(u.EscapedPath(), "/")
	b.WriteString(path)
	for i, k := range keys {
		values := query[k]
		sort.Strings(values)
		for j, v := range values {
			if i == 0 && j == 0 {
				b.WriteByte('?')
			} else {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String(), true
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func hashHex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
