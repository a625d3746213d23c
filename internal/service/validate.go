// Package service contains the business logic for the tagstore API.
// Services validate inputs, enforce the ownership and versioning rules, and
// orchestrate repo calls. No SQL lives here — services depend on repo
// interfaces, not implementations.
package service

import (
	"regexp"
	"strings"

	"github.com/opentagger/tagstore/internal/domain"
)

var (
	// productRe: a product identifier is a bare numeric code, 1 to 24 digits.
	productRe = regexp.MustCompile(`^[0-9]{1,24}$`)

	// keyRe: one or more lowercase segments joined by colons,
	// e.g. "color" or "packaging:material:outer".
	keyRe = regexp.MustCompile(`^[a-z0-9_-]+(:[a-z0-9_-]+)*$`)
)

// NormalizeKey trims surrounding whitespace and lowercases a tag key.
// Lowercasing is applied uniformly here so that key identity is
// case-insensitive on every path, reads and writes alike.
func NormalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// ValidateTag normalizes and validates a proposed tag, returning the
// normalized copy that is safe to persist. Key and value are stored trimmed,
// never raw. Pure function: no side effects, no I/O.
func ValidateTag(tag domain.Tag) (domain.Tag, error) {
	if !productRe.MatchString(tag.Product) {
		return domain.Tag{}, &domain.FieldError{Field: "product", Reason: "must be 1 to 24 digits"}
	}

	tag.Key = NormalizeKey(tag.Key)
	if tag.Key == "" {
		return domain.Tag{}, &domain.FieldError{Field: "k", Reason: "cannot be empty"}
	}
	if !keyRe.MatchString(tag.Key) {
		return domain.Tag{}, &domain.FieldError{Field: "k", Reason: "must be lowercase segments [a-z0-9_-] joined by ':'"}
	}

	tag.Value = strings.TrimSpace(tag.Value)
	if tag.Value == "" {
		return domain.Tag{}, &domain.FieldError{Field: "v", Reason: "cannot be empty"}
	}

	if tag.Version < 1 {
		return domain.Tag{}, &domain.FieldError{Field: "version", Reason: "must be greater or equal to 1"}
	}

	return tag, nil
}

// validateKey normalizes and validates a key on its own, for endpoints that
// address a tag by key without carrying a full tag body.
func validateKey(k string) (string, error) {
	k = NormalizeKey(k)
	if k == "" {
		return "", &domain.FieldError{Field: "k", Reason: "cannot be empty"}
	}
	if !keyRe.MatchString(k) {
		return "", &domain.FieldError{Field: "k", Reason: "must be lowercase segments [a-z0-9_-] joined by ':'"}
	}
	return k, nil
}
