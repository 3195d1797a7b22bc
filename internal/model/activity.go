package model

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeActivityCode turns free-form input into an activity code:
// diacritics removed, upper case, runs of whitespace replaced by "_".
//
//	" jiu  jitsu "  -> "JIU_JITSU"
//	"Pádel"         -> "PADEL"
func NormalizeActivityCode(v string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, strings.TrimSpace(v))
	if err != nil {
		folded = strings.TrimSpace(v)
	}
	upper := cases.Upper(language.Und).String(folded)
	return strings.Join(strings.Fields(upper), "_")
}

// SortActivitiesByName orders activities by name, case-insensitively.
func SortActivitiesByName(items []Activity) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

// FindActivity returns the activity with the given id.
func FindActivity(items []Activity, id string) (Activity, bool) {
	for _, a := range items {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// FilterUsers keeps users whose name, full name, email or role contains
// query (case-insensitive). An empty query keeps everything.
func FilterUsers(users []User, query string) []User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		for _, field := range []string{u.Name, u.FullName, u.Email, string(u.Role)} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}
