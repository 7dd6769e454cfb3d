// Package lashinbang searches the Lashinbang shop through its JSONP
// search service.
package lashinbang

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
)

const (
	// DefaultBaseURL is the production search service.
	DefaultBaseURL = "https://lashinbang-f-s.snva.jp"
	// DefaultShopURL is the storefront that issues the age check cookie.
	DefaultShopURL = "https://shop.lashinbang.com"
)

const (
	ageCheckPath = "/age_check"
	pageSize     = 100
)

// Options configures an Adapter.
type Options struct {
	BaseURL string
	ShopURL string
	Timeout time.Duration
	Signer  source.RequestSigner
	Now     func() time.Time
}

// Adapter implements source.Adapter for Lashinbang. It passes the age
// check once per process before the first search.
type Adapter struct {
	client  *resty.Client
	signer  source.RequestSigner
	shopURL string
	now     func() time.Time

	mu         sync.Mutex
	ageChecked bool
}

// New creates an Adapter.
func New(opts Options) *Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ShopURL == "" {
		opts.ShopURL = DefaultShopURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	shopURL := strings.TrimRight(opts.ShopURL, "/")

	client := source.NewClient(source.ClientOptions{BaseURL: opts.BaseURL, Timeout: opts.Timeout})
	client.SetHeader("Referer", shopURL+"/")
	return &Adapter{
		client:  client,
		signer:  opts.Signer,
		shopURL: shopURL,
		now:     opts.Now,
	}
}

// Name returns model.SourceLashinbang.
func (a *Adapter) Name() model.Source {
	return model.SourceLashinbang
}

// Fetch returns the first result page for keyword.
func (a *Adapter) Fetch(ctx context.Context, keyword string) ([]model.RawListing, error) {
	if err := a.passAgeCheck(ctx); err != nil {
		return nil, source.NewFetchError(model.SourceLashinbang, keyword, err)
	}
	body, err := source.Get(ctx, a.client, a.signer, "/", a.searchParams(keyword))
	if err != nil {
		return nil, source.NewFetchError(model.SourceLashinbang, keyword, err)
	}
	listings, err := Parse(body)
	if err != nil {
		return nil, source.NewFetchError(model.SourceLashinbang, keyword, err)
	}
	return listings, nil
}

// passAgeCheck visits the storefront age check so the cookie jar carries
// the confirmation cookie. A failed attempt is retried on the next fetch.
func (a *Adapter) passAgeCheck(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ageChecked {
		return nil
	}
	if _, err := source.Get(ctx, a.client, a.signer, a.shopURL+ageCheckPath, nil); err != nil {
		return fmt.Errorf("age check: %w", err)
	}
	a.ageChecked = true
	return nil
}

func (a *Adapter) searchParams(keyword string) map[string]string {
	return map[string]string{
		"q":           keyword,
		"searchbox[]": keyword,
		"s6o":         "1",
		"pl":          "1",
		"sort":        "Number18,Score",
		"limit":       strconv.Itoa(pageSize),
		"o":           "0",
		"n6l":         "1",
		"callback":    "callback",
		"controller":  "lashinbang_front",
		"_":           strconv.FormatInt(a.now().UnixMilli(), 10),
	}
}

type searchResponse struct {
	Kotohaco *struct {
		Result *struct {
			Items []searchItem `json:"items"`
		} `json:"result"`
	} `json:"kotohaco"`
}

type searchItem struct {
	ItemID source.FlexString `json:"itemid"`
	Title  string            `json:"title"`
	URL    string            `json:"url"`
	Image  string            `json:"image"`
	Price  source.FlexString `json:"price"`
	Stock  source.FlexString `json:"stock"`
}

// Parse decodes a JSONP search response.
func Parse(body []byte) ([]model.RawListing, error) {
	payload, err := source.UnwrapJSONP(body)
	if err != nil {
		return nil, err
	}
	var res searchResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if res.Kotohaco == nil || res.Kotohaco.Result == nil {
		return nil, fmt.Errorf("no result in response")
	}

	items := res.Kotohaco.Result.Items
	listings := make([]model.RawListing, 0, len(items))
	for _, it := range items {
		listings = append(listings, model.RawListing{
			ID:       string(it.ItemID),
			Title:    it.Title,
			URL:      it.URL,
			ImageURL: it.Image,
			Price:    string(it.Price),
			Status:   stockStatus(string(it.Stock)),
		})
	}
	return listings, nil
}

// stockStatus maps the stock count to a status string. A missing count
// means the item is listed as available.
func stockStatus(stock string) string {
	if stock == "" {
		return ""
	}
	if n, err := strconv.Atoi(stock); err == nil && n <= 0 {
		return "soldout"
	}
	return "instock"
}
