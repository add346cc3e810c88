// Package ident defines the offline identifier scheme used by the local
// store and the rules for deciding whether an identifier is trustworthy.
//
// An offline identifier marks an entity whose true identity has not yet been
// assigned by the remote backend. The shape is:
//
//	<prefix>-<unix-millis>-<random lowercase alphanumeric>
//
// for example "exp-1717171717171-k3x9q0a2b". Anything matching this shape is
// treated as local-only everywhere in the system; anything containing a
// reserved token is rejected everywhere an identifier is accepted as input.
package ident

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// Prefixes for each entity kind that mints its own offline identifiers.
// Kinds without a dedicated prefix use PrefixGeneric.
const (
	PrefixGeneric     = "offline"
	PrefixFamily      = "family"
	PrefixExpense     = "exp"
	PrefixMonth       = "month"
	PrefixGoal        = "goal"
	PrefixRecurring   = "rec"
	PrefixSubcategory = "sub"
	PrefixGoalEntry   = "gentry"
)

const suffixLen = 9

const suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// offlinePattern matches the full offline identifier shape. Go's regexp
// engine is RE2, so matching is linear in the input regardless of content.
var offlinePattern = regexp.MustCompile(
	`^(offline|family|exp|month|goal|rec|sub|gentry)-\d+-[a-z0-9]+$`)

// safePattern is the shape required of any identifier accepted as external
// input (config values, foreign keys on mutation payloads). Alphanumeric,
// hyphen and underscore only, length-bounded.
var safePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// reservedWords are identifier-like strings that must never be accepted as
// data. They come from host-object-model hazards in the clients that share
// this storage contract; the denylist is kept language-independent here.
var reservedWords = []string{
	"__proto__",
	"constructor",
	"prototype",
	"__definegetter__",
	"__definesetter__",
	"__lookupgetter__",
	"__lookupsetter__",
	"hasownproperty",
}

// Mint generates a new offline identifier with the given prefix.
// The timestamp component makes identifiers roughly sortable by creation
// time; the random suffix makes collisions negligible. Callers that persist
// the identifier should still retry on collision.
func Mint(prefix string) string {
	if !validPrefix(prefix) {
		prefix = PrefixGeneric
	}
	suffix := make([]byte, suffixLen)
	for i := range suffix {
		suffix[i] = suffixCharset[rand.IntN(len(suffixCharset))]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}

// IsOffline reports whether id denotes an entity that has not yet been
// assigned a remote identity. The pattern is authoritative: callers must
// trust it over any cached offline flag, which can go stale across reloads.
func IsOffline(id string) bool {
	return offlinePattern.MatchString(id)
}

// ContainsReserved reports whether s contains any reserved token,
// case-insensitively.
func ContainsReserved(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range reservedWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// IsSafe reports whether id is acceptable as an identifier arriving from
// outside the process: non-empty, bounded, limited to alphanumerics plus
// hyphen/underscore, and free of reserved tokens. This admits both offline
// identifiers and server-assigned ones (UUIDs and the like).
func IsSafe(id string) bool {
	if !safePattern.MatchString(id) {
		return false
	}
	return !ContainsReserved(id)
}

func validPrefix(p string) bool {
	switch p {
	case PrefixGeneric, PrefixFamily, PrefixExpense, PrefixMonth,
		PrefixGoal, PrefixRecurring, PrefixSubcategory, PrefixGoalEntry:
		return true
	}
	return false
}
