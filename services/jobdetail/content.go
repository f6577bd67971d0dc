// Package jobdetail derives regenerable metadata from downloaded job
// pages: open/closed state and a size-capped preview of the main
// content.
package jobdetail

import (
	"strings"
	"unicode/utf8"

	"lobbytrack-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// the site renders this fixed notice on closed vacancies. content
// sniffing, brittle to copy changes, but it is the only signal the
// page exposes.
const ClosedMarker = "На жаль, вакансія вже закрита!"

// IsClosed reports whether a job page announces the vacancy as closed.
func IsClosed(html string) bool {
	return strings.Contains(html, ClosedMarker)
}

// maximum size of the extracted content preview
const maxContentLen = 50000

// the candidate rules are tried in order and the first match wins.
// adding or reordering rules only touches this table.
type contentRule struct {
	name string
	find func(doc *goquery.Document) *goquery.Selection
}

var contentRules = []contentRule{
	{"main", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("main").First()
	}},
	{"article", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("article").First()
	}},
	{"content-class div", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return hasAnyClassSubstring(sel, "content", "main", "posting", "job")
		}).First()
	}},
	{"section", func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("section").First()
	}},
}

func hasAnyClassSubstring(sel *goquery.Selection, substrs ...string) bool {
	for _, s := range substrs {
		if htmlutil.ClassContains(sel, s) {
			return true
		}
	}
	return false
}

// ExtractContent pulls a "good enough" preview of the posting body out
// of a full job page. lossy and heuristic by design: structural
// guesses first, then the largest block, then the body, then the raw
// document.
func ExtractContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style").Remove()

	var chosen *goquery.Selection
	for _, rule := range contentRules {
		sel := rule.find(doc)
		if sel.Length() > 0 {
			chosen = sel
			break
		}
	}
	if chosen == nil {
		chosen = largestDiv(doc)
	}
	if chosen == nil {
		body := doc.Find("body").First()
		if body.Length() > 0 {
			chosen = body
		}
	}
	if chosen == nil {
		return truncate(htmlutil.CollapseWhitespace(html))
	}

	stripChrome(chosen)

	inner, err := chosen.Html()
	if err != nil {
		return ""
	}
	return truncate(htmlutil.CollapseWhitespace(inner))
}

func largestDiv(doc *goquery.Document) *goquery.Selection {
	var largest *goquery.Selection
	largestLen := 0
	doc.Find("div").Each(func(_ int, sel *goquery.Selection) {
		inner, err := sel.Html()
		if err != nil {
			return
		}
		if len(inner) > largestLen {
			largestLen = len(inner)
			largest = sel
		}
	})
	return largest
}

// stripChrome drops navigation, footers, headers and sidebar-like
// sub-elements from the chosen block.
func stripChrome(sel *goquery.Selection) {
	sel.Find("nav, footer, header, aside").Remove()
	sel.Find("div").FilterFunction(func(_ int, d *goquery.Selection) bool {
		return hasAnyClassSubstring(d, "sidebar", "nav", "menu", "ad")
	}).Remove()
}

func truncate(s string) string {
	if len(s) <= maxContentLen {
		return s
	}
	cut := maxContentLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
