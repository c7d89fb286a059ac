// Package slug turns free-text store names into DNS-safe subdomains.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 3
	MaxLength = 63 // DNS label 최대 길이
)

// 검증 에러 코드 (API 응답의 error 필드로 그대로 사용)
const (
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodeInvalidFormat = "invalid_format"
	CodeReserved      = "reserved"
)

var (
	disallowed  = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
	hyphens     = regexp.MustCompile(`-+`)
	labelFormat = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// 플랫폼이 사용하는 호스트명 및 앱 라우트와 겹치는 이름
var reserved = map[string]struct{}{
	"admin": {}, "administrator": {}, "api": {}, "app": {}, "assets": {}, "auth": {},
	"billing": {}, "blog": {}, "cdn": {}, "checkout": {}, "dashboard": {}, "dev": {},
	"docs": {}, "email": {}, "ftp": {}, "git": {}, "github": {}, "help": {}, "login": {},
	"mail": {}, "ns1": {}, "ns2": {}, "pop": {}, "root": {}, "shop": {}, "signup": {},
	"smtp": {}, "staging": {}, "static": {}, "status": {}, "store": {}, "superadmin": {},
	"support": {}, "test": {}, "vercel": {}, "webmail": {}, "www": {}, "gosovereign": {},
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify produces a lowercase, hyphenated slug of at most MaxLength characters.
// "Café Del Mar!" -> "cafe-del-mar"
func Slugify(name string) string {
	s, _, err := transform.String(stripMarks, name)
	if err != nil {
		s = name
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// Normalize trims and lowercases raw subdomain input before validation.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Validate returns "" when s is an acceptable subdomain, otherwise an error code.
func Validate(s string) string {
	switch {
	case len(s) < MinLength:
		return CodeTooShort
	case len(s) > MaxLength:
		return CodeTooLong
	case !labelFormat.MatchString(s):
		return CodeInvalidFormat
	case IsReserved(s):
		return CodeReserved
	}
	return ""
}

func IsReserved(s string) bool {
	_, ok := reserved[Normalize(s)]
	return ok
}

// CheckSubdomain normalizes raw and validates it.
func CheckSubdomain(raw string) (string, string) {
	s := Normalize(raw)
	return s, Validate(s)
}

// Message returns a human readable text for a validation code.
func Message(code string) string {
	switch code {
	case CodeTooShort:
		return "subdomain must be at least 3 characters"
	case CodeTooLong:
		return "subdomain must be at most 63 characters"
	case CodeInvalidFormat:
		return "subdomain may only contain lowercase letters, numbers and hyphens, and must start and end with a letter or number"
	case CodeReserved:
		return "this subdomain is reserved"
	}
	return ""
}

// RepoName is the deterministic GitHub repository name for a store.
func RepoName(storeName string) string {
	return Slugify(storeName) + "-store"
}
