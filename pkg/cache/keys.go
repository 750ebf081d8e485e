package cache

import "strings"

// Fingerprint builds a normalized cache key from its parts: each part is
// lowercased, trimmed, and has internal whitespace runs collapsed to a
// single underscore, then the parts are joined with ':'. Identical inputs
// that differ only in case or spacing produce the same key, so lookups for
// "VPN Setup" and "vpn setup" share one entry.
//
// Keying by Fingerprint("knowledge", category, query) makes
// Fingerprint("knowledge", category)+":" the prefix that invalidates every
// cached query for that category.
func Fingerprint(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.Join(strings.Fields(strings.ToLower(part)), "_")
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	return strings.Join(normalized, ":")
}
