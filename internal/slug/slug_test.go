package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Café Del Mar!":         "cafe-del-mar",
		"  Hello   World  ":     "hello-world",
		"Ünïcödé Störe":         "unicode-store",
		"a--b__c":               "a-bc",
		"---edge---":            "edge",
		"Tom's Bikes & Repairs": "toms-bikes-repairs",
		"!!!":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSlugify_Truncates(t *testing.T) {
	long := strings.Repeat("ab ", 40)

	got := Slugify(long)

	assert.LessOrEqual(t, len(got), MaxLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestSlugify_OutputIsValidOrRejected(t *testing.T) {
	inputs := []string{"Café Del Mar!", "x", "ÀÉÎ Õü", "123 456", "the admin", strings.Repeat("z", 80), "-a-", "日本語ストア"}
	for _, in := range inputs {
		s := Slugify(in)
		assert.Equal(t, strings.ToLower(s), s)
		assert.LessOrEqual(t, len(s), MaxLength)
		if Validate(s) == "" {
			assert.Regexp(t, `^[a-z0-9][a-z0-9-]*[a-z0-9]$`, s)
		}
	}
}

func TestValidate(t *testing.T) {
	assert.Equal(t, "", Validate("my-store"))
	assert.Equal(t, CodeTooShort, Validate("ab"))
	assert.Equal(t, CodeTooLong, Validate(strings.Repeat("a", 64)))
	assert.Equal(t, CodeInvalidFormat, Validate("-store"))
	assert.Equal(t, CodeInvalidFormat, Validate("store-"))
	assert.Equal(t, CodeInvalidFormat, Validate("my_store"))
	assert.Equal(t, CodeReserved, Validate("admin"))
}

func TestCheckSubdomain_ReservedIgnoresCaseAndWhitespace(t *testing.T) {
	for _, raw := range []string{"admin", "ADMIN", "  Admin ", "www", " WWW\t"} {
		s, code := CheckSubdomain(raw)
		assert.Equal(t, CodeReserved, code, raw)
		assert.Equal(t, strings.TrimSpace(strings.ToLower(raw)), s)
	}
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "cafe-del-mar-store", RepoName("Café Del Mar!"))
}
