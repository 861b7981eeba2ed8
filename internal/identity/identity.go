// Package identity computes canonical keys for people and companies from
// noisy attributes. Everything here is pure: no I/O, no errors.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key prefixes, in priority order.
const (
	PrefixProvider    = "provider:"
	PrefixNetwork     = "network:"
	PrefixEmail       = "email:"
	PrefixProviderOrg = "provider_org:"
	PrefixDomain      = "domain:"
	PrefixHash        = "hash:"
)

// Title buckets.
const (
	BucketCSuite     = "c_suite"
	BucketVPDirector = "vp_director"
	BucketManager    = "manager"
	BucketEngineer   = "engineer"
	BucketUnknown    = "unknown"
)

// Person holds the raw attributes the person key is derived from.
type Person struct {
	ProviderID    string
	NetworkURL    string
	Email         string
	FirstName     string
	LastName      string
	CompanyDomain string
	Title         string
}

// Company holds the raw attributes the company key is derived from.
type Company struct {
	ProviderOrgID string
	Domain        string
	Name          string
	City          string
	State         string
}

var titleBuckets = []struct {
	name     string
	keywords []string
}{
	{BucketCSuite, []string{"chief", "ceo", "coo", "cfo", "president"}},
	{BucketVPDirector, []string{"vp", "vice president", "director", "head"}},
	{BucketManager, []string{"manager", "supervisor", "lead"}},
	{BucketEngineer, []string{"engineer", "engineering", "systems", "automation", "controls"}},
}

// PersonKey returns the canonical key for p. The first identifier present wins:
// provider id, normalized network URL, normalized email, then a hash of
// name, company domain and title bucket.
func PersonKey(p Person) string {
	if id := strings.TrimSpace(p.ProviderID); id != "" {
		return PrefixProvider + id
	}
	if u := NormalizeNetworkURL(p.NetworkURL); u != "" {
		return PrefixNetwork + u
	}
	if e := NormalizeEmail(p.Email); e != "" {
		return PrefixEmail + e
	}
	fallback := strings.Join([]string{
		NormalizeText(p.FirstName),
		NormalizeText(p.LastName),
		NormalizeDomain(p.CompanyDomain),
		TitleBucket(p.Title),
	}, "|")
	return PrefixHash + StableHash(fallback)
}

// CompanyKey returns the canonical key for c: provider org id, normalized
// domain, then a hash of name, city and state.
func CompanyKey(c Company) string {
	if id := strings.TrimSpace(c.ProviderOrgID); id != "" {
		return PrefixProviderOrg + id
	}
	if d := NormalizeDomain(c.Domain); d != "" {
		return PrefixDomain + d
	}
	fallback := NormalizeText(c.Name) + "|" + NormalizeText(c.City) + "|" + NormalizeText(c.State)
	return PrefixHash + StableHash(fallback)
}

// Rank reports the priority tier of a key; lower is stronger. Unknown
// prefixes rank below the hash tier.
func Rank(key string) int {
	switch {
	case strings.HasPrefix(key, PrefixProvider), strings.HasPrefix(key, PrefixProviderOrg):
		return 0
	case strings.HasPrefix(key, PrefixNetwork), strings.HasPrefix(key, PrefixDomain):
		return 1
	case strings.HasPrefix(key, PrefixEmail):
		return 2
	case strings.HasPrefix(key, PrefixHash):
		return 3
	default:
		return 4
	}
}

// TitleBucket classifies a job title. Buckets are tested in fixed order and
// the first keyword hit wins.
func TitleBucket(title string) string {
	t := NormalizeText(title)
	if t == "" {
		return BucketUnknown
	}
	for _, b := range titleBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(t, kw) {
				return b.name
			}
		}
	}
	return BucketUnknown
}

// NormalizeText trims and lowercases.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return NormalizeText(email)
}

// NormalizeNetworkURL lowercases a profile URL and strips its scheme, query
// string and trailing slash.
func NormalizeNetworkURL(raw string) string {
	u := NormalizeText(raw)
	if u == "" {
		return ""
	}
	u = stripScheme(u)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// NormalizeDomain reduces a URL or host to a bare lowercase domain without
// scheme, path or leading "www.".
func NormalizeDomain(raw string) string {
	d := NormalizeText(raw)
	if d == "" {
		return ""
	}
	d = stripScheme(d)
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// StableHash is the hex sha256 of s.
func StableHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// RequestHash fingerprints an enrichment request for dedup.
func RequestHash(personKey string, revealPersonalEmails, revealPhoneNumber bool) string {
	return StableHash(personKey + "|" + boolDigit(revealPersonalEmails) + "|" + boolDigit(revealPhoneNumber))
}

func stripScheme(s string) string {
	for _, p := range []string{"https://", "http://"} {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return s
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
