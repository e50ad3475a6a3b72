package fetcher

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements stripped before text extraction: scripts, styling, chrome and
// form machinery contribute no readable content.
var strippedSelectors = []string{
	"script", "style", "noscript", "svg", "iframe",
	"header", "footer", "nav", "form", "aside",
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// ExtractText pulls the readable text and declared language out of an HTML
// document. The main/article element is preferred over the full body when
// present. Parse failures yield empty text, not an error: a page with no
// extractable content is still a successful fetch.
func ExtractText(html string) (cleanedText, detectedLanguage string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		detectedLanguage = normalizeLanguage(lang)
	}

	for _, selector := range strippedSelectors {
		doc.Find(selector).Remove()
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", detectedLanguage
	}

	return collapseWhitespace(root.Text()), detectedLanguage
}

// collapseWhitespace trims each line and folds runs of blank lines into one.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	collapsed := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(collapsed)
}

// normalizeLanguage lowercases a lang attribute and keeps only the primary
// subtag ("en-US" -> "en").
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}
