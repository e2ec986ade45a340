package locale

import "golang.org/x/text/language"

// supportedTags drives Accept-Language matching. The first entry is the
// matcher's fallback and must stay aligned with DefaultLanguage.
var supportedTags = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
	language.Japanese,
	language.Korean,
	language.Chinese,
}

var matcher = language.NewMatcher(supportedTags)

// DetectLanguage maps an Accept-Language header to the closest supported
// language code. Returns "" when the header is empty, unparseable, or matches
// nothing.
func DetectLanguage(acceptLanguage string) string {
	if acceptLanguage == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, index, conf := matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	base, _ := supportedTags[index].Base()
	return base.String()
}
