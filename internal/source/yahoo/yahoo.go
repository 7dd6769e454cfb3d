// Package yahoo searches Yahoo! Auctions by scraping its HTML result page.
package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
)

// DefaultBaseURL is the production search host.
const DefaultBaseURL = "https://auctions.yahoo.co.jp"

const (
	searchPath = "/search/search"
	pageSize   = 100
)

// Options configures an Adapter.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Signer  source.RequestSigner
	Now     func() time.Time
}

// Adapter implements source.Adapter for Yahoo! Auctions.
type Adapter struct {
	client *resty.Client
	signer source.RequestSigner
	now    func() time.Time
}

// New creates an Adapter.
func New(opts Options) *Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Signer == nil {
		opts.Signer = source.NoSigner
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{
		client: source.NewClient(source.ClientOptions{BaseURL: opts.BaseURL, Timeout: opts.Timeout}),
		signer: opts.Signer,
		now:    opts.Now,
	}
}

// Name returns model.SourceYahoo.
func (a *Adapter) Name() model.Source {
	return model.SourceYahoo
}

// Fetch returns the listings on the first result page for keyword.
func (a *Adapter) Fetch(ctx context.Context, keyword string) ([]model.RawListing, error) {
	body, err := source.Get(ctx, a.client, a.signer, searchPath, searchParams(keyword))
	if err != nil {
		return nil, source.NewFetchError(model.SourceYahoo, keyword, err)
	}
	listings, err := Parse(body, a.now())
	if err != nil {
		return nil, source.NewFetchError(model.SourceYahoo, keyword, err)
	}
	return listings, nil
}

func searchParams(keyword string) map[string]string {
	return map[string]string{
		"p":      keyword,
		"auccat": "",
		"tab_ex": "commerce",
		"ei":     "utf-8",
		"aq":     "-1",
		"oq":     "",
		"sc_i":   "",
		"exflg":  "1",
		"b":      "1",
		"n":      strconv.Itoa(pageSize),
	}
}

// Parse extracts listings from a search result page. Promoted listings are
// skipped. The status is derived from the end time and bid count as seen
// at now.
func Parse(body []byte, now time.Time) ([]model.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if doc.Find("div.Empty").Length() > 0 {
		return []model.RawListing{}, nil
	}

	products := doc.Find("div.Product__detail")
	if products.Length() == 0 {
		return nil, fmt.Errorf("no result list in page")
	}

	listings := make([]model.RawListing, 0, products.Length())
	products.Each(func(_ int, s *goquery.Selection) {
		if s.Find(".Product__featured").Length() > 0 {
			return
		}
		bonus := s.Find("div").First()
		title := s.Find("h3 a").First()
		bids := parseBids(s.Find("span.Product__bid").First().Text())
		endsAt := bonus.AttrOr("data-auction-endtime", "")

		raw := model.RawListing{
			ID:          bonus.AttrOr("data-auction-id", ""),
			SellerID:    bonus.AttrOr("data-auction-sellerid", ""),
			Title:       title.AttrOr("data-auction-title", strings.TrimSpace(title.Text())),
			URL:         title.AttrOr("href", ""),
			ImageURL:    clearQuery(title.AttrOr("data-auction-img", "")),
			Price:       bonus.AttrOr("data-auction-price", ""),
			BuyNowPrice: bonus.AttrOr("data-auction-buynowprice", ""),
			EndsAt:      endsAt,
			Status:      deriveStatus(endsAt, bids, now),
		}
		if bids >= 0 {
			raw.Bids = strconv.Itoa(bids)
		}
		listings = append(listings, raw)
	})
	return listings, nil
}

// parseBids reads the leading number of texts like "3" or "3件".
// It returns -1 when there is no number.
func parseBids(text string) int {
	text = strings.TrimSpace(text)
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}
	n, err := strconv.Atoi(text[:end])
	if err != nil {
		return -1
	}
	return n
}

func deriveStatus(endsAt string, bids int, now time.Time) string {
	if sec, err := strconv.ParseInt(endsAt, 10, 64); err == nil && sec > 0 && !now.Before(time.Unix(sec, 0)) {
		return "closed"
	}
	if bids > 0 {
		return "bidding"
	}
	return "open"
}

func clearQuery(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
