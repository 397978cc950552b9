package mediathek

import (
	"encoding/xml"
	"strings"
	"time"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

// ParseFeed parses the aggregator's RSS feed into candidate items. Items
// without a link are skipped; malformed publish dates degrade to a zero
// timestamp rather than failing the parse.
func ParseFeed(data []byte) ([]Item, error) {
	var feed rssFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		if link == "" {
			continue
		}

		items = append(items, Item{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			Link:        link,
			PublishedAt: parseDate(item.PubDate),
		})
	}

	return items, nil
}

// parseDate parses the feed timestamp on a best-effort basis.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// InferQuality guesses a quality label from a candidate title.
func InferQuality(title string) string {
	switch {
	case strings.Contains(title, "1080"):
		return "1080p"
	case strings.Contains(title, "720"), strings.Contains(title, "HD"):
		return "720p"
	default:
		return "480p"
	}
}
