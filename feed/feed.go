// Package feed fetches RSS/Atom feeds for the dashboard and flattens them
// into the JSON shape the UI consumes.
package feed

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
)

// Item is one feed entry.
type Item struct {
	Title       string `json:"title,omitempty"`
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`
	PubDate     string `json:"pub_date,omitempty"`
}

// Feed is the flattened feed document.
type Feed struct {
	Title string `json:"title"`
	Items []Item `json:"feeds"`
}

// Fetcher retrieves and parses feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher creates a Fetcher with the browser-like user agent some school
// feed hosts insist on.
func NewFetcher() *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	return &Fetcher{parser: parser}
}

// Fetch downloads and parses the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch feed %q", url)
	}

	feed := &Feed{Title: parsed.Title, Items: make([]Item, 0, len(parsed.Items))}
	for _, entry := range parsed.Items {
		item := Item{
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
		}
		if entry.PublishedParsed != nil {
			item.PubDate = entry.PublishedParsed.Format(time.RFC1123Z)
		} else {
			item.PubDate = entry.Published
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}
