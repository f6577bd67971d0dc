// Package listing extracts job posting summaries from captured
// listing-page snapshots.
package listing

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"lobbytrack-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	StatusOpen    = "open"
	StatusClosed  = "closed"
	StatusUnknown = "unknown"
)

// Post is one job posting's summary as it appears on the listing page.
type Post struct {
	PostID     string   `json:"post_id"`
	URL        string   `json:"url"`
	UnitName   string   `json:"unit_name"`
	Position   string   `json:"position"`
	ImageURL   string   `json:"image_url"`
	Categories []string `json:"categories"`
	Units      []string `json:"units"`
	Status     string   `json:"status"`
}

var postIDRegex = regexp.MustCompile(`post-(\d+)`)
var containerIDRegex = regexp.MustCompile(`^post-\d+$`)

// ExtractPostID pulls the numeric id out of a "post-<digits>" DOM id.
func ExtractPostID(domID string) (string, bool) {
	groups := postIDRegex.FindStringSubmatch(domID)
	if groups == nil {
		return "", false
	}
	return groups[1], true
}

// ParseListing extracts every posting container from one listing
// document. a malformed posting is counted in failed and skipped, it
// never aborts the rest of the page.
func ParseListing(r io.Reader) (posts []Post, failed int, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, err
	}

	seen := map[string]bool{}
	doc.Find("div[id]").Each(func(_ int, sel *goquery.Selection) {
		domID, _ := sel.Attr("id")
		if !containerIDRegex.MatchString(domID) {
			return
		}
		post, ok := parsePostDiv(sel)
		if !ok {
			failed++
			return
		}
		if seen[post.PostID] {
			// duplicate ids inside one snapshot indicate a parsing
			// defect upstream, keep the first
			slog.Warn("duplicate post id within snapshot", "post_id", post.PostID)
			return
		}
		seen[post.PostID] = true
		posts = append(posts, post)
	})

	return posts, failed, nil
}

func parsePostDiv(sel *goquery.Selection) (Post, bool) {
	domID, _ := sel.Attr("id")
	id, ok := ExtractPostID(domID)
	if !ok {
		slog.Warn("posting container without a usable id", "dom_id", domID)
		return Post{}, false
	}

	post := Post{
		PostID:     id,
		Status:     StatusUnknown,
		Categories: []string{},
		Units:      []string{},
	}

	for _, class := range htmlutil.Classes(sel) {
		switch {
		case strings.HasPrefix(class, "category-"):
			post.Categories = append(post.Categories, class)
		case strings.HasPrefix(class, "units-"):
			post.Units = append(post.Units, class)
		case strings.Contains(class, "tors-status-"):
			if strings.Contains(class, "is-open") {
				post.Status = StatusOpen
			} else if strings.Contains(class, "is-closed") {
				post.Status = StatusClosed
			}
		}
	}

	// every lookup below is optional, missing elements default to ""
	post.URL = sel.Find("a.job-item").First().AttrOr("href", "")
	post.UnitName = strings.TrimSpace(htmlutil.Text(sel.Find("h4.square-content__title").First()))
	post.Position = strings.TrimSpace(htmlutil.Text(sel.Find("h4.vacancy_content").First()))
	post.ImageURL = sel.Find("img.wp-post-image").First().AttrOr("src", "")

	return post, true
}
