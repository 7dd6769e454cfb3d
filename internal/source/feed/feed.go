// Package feed turns an RSS or Atom search feed into listings.
package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
)

// Placeholder is replaced by the query-escaped keyword in a URL template.
const Placeholder = "{keyword}"

// Options configures an Adapter.
type Options struct {
	// URLTemplate is the feed URL with a Placeholder for the keyword.
	URLTemplate string
	Timeout     time.Duration
	Signer      source.RequestSigner
}

// Adapter implements source.Adapter for a generic search feed.
type Adapter struct {
	client   *resty.Client
	signer   source.RequestSigner
	template string
}

// New creates an Adapter.
func New(opts Options) *Adapter {
	return &Adapter{
		client:   source.NewClient(source.ClientOptions{Timeout: opts.Timeout}),
		signer:   opts.Signer,
		template: opts.URLTemplate,
	}
}

// Name returns model.SourceFeed.
func (a *Adapter) Name() model.Source {
	return model.SourceFeed
}

// Fetch downloads the feed for keyword and returns one listing per entry.
func (a *Adapter) Fetch(ctx context.Context, keyword string) ([]model.RawListing, error) {
	body, err := source.Get(ctx, a.client, a.signer, FeedURL(a.template, keyword), nil)
	if err != nil {
		return nil, source.NewFetchError(model.SourceFeed, keyword, err)
	}
	listings, err := Parse(body)
	if err != nil {
		return nil, source.NewFetchError(model.SourceFeed, keyword, err)
	}
	return listings, nil
}

// FeedURL expands template for keyword.
func FeedURL(template, keyword string) string {
	return strings.ReplaceAll(template, Placeholder, url.QueryEscape(keyword))
}

// Parse reads an RSS or Atom document.
func Parse(body []byte) ([]model.RawListing, error) {
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	listings := make([]model.RawListing, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		price := FindPrice(item.Title)
		if price == "" {
			price = FindPrice(item.Description)
		}
		listings = append(listings, model.RawListing{
			ID:       ItemGUID(item),
			Title:    item.Title,
			URL:      item.Link,
			ImageURL: imageURL(item),
			Price:    price,
		})
	}
	return listings, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[¥￥]\s*([0-9][0-9,]*)`),
	regexp.MustCompile(`([0-9][0-9,]*)\s*円`),
}

// FindPrice returns the first yen amount in text, such as "¥1,234" or
// "1,234円", or "" when there is none.
func FindPrice(text string) string {
	for _, re := range pricePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
