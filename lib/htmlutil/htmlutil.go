package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Text returns the concatenated text content of every node in the
// selection.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, node := range sel.Nodes {
		getTextRecursive(node, &buffer)
	}
	return buffer.String()
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

func CollapseWhitespace(s string) string {
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.Trim(s, " \t\n")
}

// Classes returns the class attribute of the first node in the
// selection split into individual tokens.
func Classes(sel *goquery.Selection) []string {
	attr, ok := sel.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(attr)
}

// ClassContains reports whether any class token of the selection
// contains the given substring.
func ClassContains(sel *goquery.Selection, substr string) bool {
	for _, c := range Classes(sel) {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
