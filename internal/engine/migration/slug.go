package migration

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 50

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases, strips diacritics and collapses every non-alphanumeric
// run into a single hyphen.
func Slugify(name string) string {
	if stripped, _, err := transform.String(deaccent, name); err == nil {
		name = stripped
	}
	name = strings.ToLower(name)

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "tenant"
	}
	return slug
}

// UniqueSlug disambiguates identically named tenants by suffixing the slug
// with the first 6 characters of the tenant id.
func UniqueSlug(name, tenantID string) string {
	suffix := strings.TrimPrefix(tenantID, "tn_")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return Slugify(name) + "-" + suffix
}
