package report

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DOMText returns the visible text of an HTML document with whitespace
// collapsed. Script, style and template contents are dropped.
func DOMText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.Join(strings.Fields(root.Text()), " "), nil
}
