package server

import (
	"net/http"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgStreamLimited = "Too many stream requests. Try again in %d seconds."
	msgSearchLimited = "Too many search requests. Try again in %d seconds."
)

var supportedLanguages = []language.Tag{language.English, language.Japanese}

var languageMatcher = language.NewMatcher(supportedLanguages)

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	b.Set(language.English, msgStreamLimited, plural.Selectf(1, "%d",
		"=1", "Too many stream requests. Try again in 1 second.",
		"other", "Too many stream requests. Try again in %d seconds.",
	))
	b.Set(language.English, msgSearchLimited, plural.Selectf(1, "%d",
		"=1", "Too many search requests. Try again in 1 second.",
		"other", "Too many search requests. Try again in %d seconds.",
	))
	b.SetString(language.Japanese, msgStreamLimited, "再生リクエストが多すぎます。%d秒後にもう一度お試しください。")
	b.SetString(language.Japanese, msgSearchLimited, "検索リクエストが多すぎます。%d秒後にもう一度お試しください。")

	return b
}

// printerFor picks the best supported language from the Accept-Language header.
func printerFor(r *http.Request) *message.Printer {
	tags, _, _ := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	_, idx, _ := languageMatcher.Match(tags...)
	return message.NewPrinter(supportedLanguages[idx], message.Catalog(messages))
}
