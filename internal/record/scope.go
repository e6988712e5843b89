package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope is the logical identity of a run: what the cursor sequence
// enumerates. Two runs with equal scopes crawl the same page sequence.
type Scope struct {
	Country           string `json:"country" yaml:"country"`
	CatalogsBundle    string `json:"catalogs_bundle" yaml:"catalogs_bundle"`
	ParamsFingerprint string `json:"params_fingerprint" yaml:"params_fingerprint"`
}

// NewScope builds a Scope from raw inputs, canonicalizing the catalog list
// and fingerprinting the membership-affecting query parameters.
func NewScope(country string, catalogs []string, params map[string]string) Scope {
	return Scope{
		Country:           strings.ToLower(strings.TrimSpace(country)),
		CatalogsBundle:    CanonicalCatalogs(catalogs),
		ParamsFingerprint: FingerprintParams(params),
	}
}

// Equal reports whether two scopes identify the same crawl.
func (s Scope) Equal(other Scope) bool { return s == other }

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Country, s.CatalogsBundle, s.ParamsFingerprint)
}

// CanonicalCatalogs canonicalizes a catalog list into a stable
// comma-separated string: trimmed, deduplicated, sorted.
//
// Example: ["prime", "netflix", "prime"] -> "netflix,prime"
func CanonicalCatalogs(catalogs []string) string {
	seen := make(map[string]bool, len(catalogs))
	var out []string
	for _, c := range catalogs {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// FingerprintParams returns a stable hex digest over the pagination and
// membership-affecting query parameters. Key order does not matter; any
// change to a key or value produces a different fingerprint.
func FingerprintParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		// Length-prefix both parts so "ab"+"c" and "a"+"bc" never collide.
		fmt.Fprintf(h, "%d:%s=%d:%s;", len(k), k, len(params[k]), params[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
