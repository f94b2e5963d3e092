// Package identity generates stable entity ids from display names.
//
// Han characters are transliterated to toneless pinyin, other scripts are
// folded to ASCII by stripping combining marks, and everything outside
// [a-z0-9_] is dropped. Non-character types get a short prefix so that the
// same name under two types yields distinct ids. When nothing survives the
// cleanup the id falls back to a hash of the name.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/scrypster/chronicle/pkg/types"
)

// maxSuffix bounds the collision search.
const maxSuffix = 10000

var (
	validID   = regexp.MustCompile(`^[a-z0-9_]+$`)
	underRuns = regexp.MustCompile(`_+`)
)

// typePrefix maps entity types to id prefixes. Characters have none.
var typePrefix = map[types.EntityType]string{
	types.EntityItem:     "item_",
	types.EntityFaction:  "faction_",
	types.EntityAbility:  "skill_",
	types.EntityLocation: "loc_",
}

// Taken reports whether id is already used for the type being generated.
type Taken func(ctx context.Context, id string) (bool, error)

// Valid reports whether id is a well-formed entity id.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// Base returns the collision-free candidate for name before suffixing.
func Base(typ types.EntityType, name string) string {
	slug := Slug(name)
	if slug == "" {
		slug = fmt.Sprintf("%016x", xxhash.Sum64String(strings.TrimSpace(name)))[:8]
	}
	return typePrefix[typ] + slug
}

// Slug transliterates name into [a-z0-9_]. It may return "".
func Slug(name string) string {
	var b strings.Builder
	args := pinyin.NewArgs()

	var han []rune
	flushHan := func() {
		if len(han) == 0 {
			return
		}
		for _, syl := range pinyin.LazyPinyin(string(han), args) {
			b.WriteString(syl)
		}
		han = han[:0]
	}

	for _, r := range name {
		if unicode.Is(unicode.Han, r) {
			han = append(han, r)
			continue
		}
		flushHan()
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '·' || r == '.':
			b.WriteByte('_')
		default:
			b.WriteString(fold(string(r)))
		}
	}
	flushHan()

	out := strings.ToLower(b.String())
	out = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, out)
	out = underRuns.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}

// fold strips combining marks ("é" -> "e").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

// Generate returns Base(typ, name), or Base with the first free numeric
// suffix (_1, _2, ...) when it is taken.
func Generate(ctx context.Context, typ types.EntityType, name string, taken Taken) (string, error) {
	base := Base(typ, name)
	id := base
	for n := 1; ; n++ {
		used, err := taken(ctx, id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
		if n > maxSuffix {
			return "", fmt.Errorf("identity: no free id for %q after %d attempts", base, maxSuffix)
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}
