package unwind

import "golang.org/x/text/language"

// ParseAcceptLanguage parses an Accept-Language header value and returns
// the highest-priority language tag as a BCP 47 string.
// It returns an empty string if the input is empty or cannot be parsed.
func ParseAcceptLanguage(s string) string {
	tags, qs, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return ""
	}
	best := 0
	for i := 1; i < len(tags); i++ {
		if qs[i] > qs[best] {
			best = i
		}
	}
	return tags[best].String()
}

// describedLocales lists the locales flag descriptions exist in.
// The first entry is the fallback.
var describedLocales = []language.Tag{language.English, language.Chinese}

var localeMatcher = language.NewMatcher(describedLocales)

// matchLocale returns the index into describedLocales that best serves
// locale. Empty or malformed locales select the fallback.
func matchLocale(locale string) int {
	if locale == "" {
		return 0
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return 0
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}
