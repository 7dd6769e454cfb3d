// Package mercari searches Mercari through its web search API.
package mercari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.mercari.jp"

const (
	searchPath   = "/search_index/search"
	pageSize     = 120
	itemURLBase  = "https://jp.mercari.com/item/"
	imageURLBase = "https://static.mercdn.net/item/detail/orig/photos/"
)

// ProofGenerator produces DPoP proofs for a request.
type ProofGenerator interface {
	Generate(method, url string) (string, error)
}

// Options configures an Adapter.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Proofs  ProofGenerator
	// Signer runs after the DPoP header is set, e.g. to add cookies.
	Signer source.RequestSigner
}

// Adapter implements source.Adapter for Mercari.
type Adapter struct {
	client *resty.Client
	signer source.RequestSigner
}

// New creates an Adapter. Options.Proofs is required.
func New(opts Options) *Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	client := source.NewClient(source.ClientOptions{BaseURL: opts.BaseURL, Timeout: opts.Timeout})
	client.SetHeader("X-Platform", "web")
	client.SetHeader("Accept", "*/*")

	htu := strings.TrimRight(opts.BaseURL, "/") + searchPath
	return &Adapter{
		client: client,
		signer: source.Chain(DPoPSigner(opts.Proofs, htu), opts.Signer),
	}
}

// DPoPSigner sets a fresh DPoP header bound to GET htu on every request.
func DPoPSigner(proofs ProofGenerator, htu string) source.RequestSigner {
	return source.SignerFunc(func(_ context.Context, req *resty.Request) error {
		if proofs == nil {
			return fmt.Errorf("no dpop generator configured")
		}
		proof, err := proofs.Generate(http.MethodGet, htu)
		if err != nil {
			return fmt.Errorf("dpop proof: %w", err)
		}
		req.SetHeader("DPoP", proof)
		return nil
	})
}

// Name returns model.SourceMercari.
func (a *Adapter) Name() model.Source {
	return model.SourceMercari
}

// Fetch returns the newest listings for keyword.
func (a *Adapter) Fetch(ctx context.Context, keyword string) ([]model.RawListing, error) {
	body, err := source.Get(ctx, a.client, a.signer, searchPath, map[string]string{
		"keyword": keyword,
		"limit":   strconv.Itoa(pageSize),
		"page":    "0",
		"sort":    "created_time",
		"order":   "desc",
	})
	if err != nil {
		return nil, source.NewFetchError(model.SourceMercari, keyword, err)
	}
	listings, err := Parse(body)
	if err != nil {
		return nil, source.NewFetchError(model.SourceMercari, keyword, err)
	}
	return listings, nil
}

type searchResponse struct {
	Data *[]searchItem `json:"data"`
}

type searchItem struct {
	ID     source.FlexString `json:"id"`
	Name   string            `json:"name"`
	Price  source.FlexString `json:"price"`
	Status string            `json:"status"`
	Seller struct {
		ID source.FlexString `json:"id"`
	} `json:"seller"`
	Thumbnails []string `json:"thumbnails"`
}

// Parse decodes a search response. A payload without a data array is an
// error; an empty array is not.
func Parse(body []byte) ([]model.RawListing, error) {
	var res searchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if res.Data == nil {
		return nil, fmt.Errorf("no data in response")
	}

	listings := make([]model.RawListing, 0, len(*res.Data))
	for _, it := range *res.Data {
		id := string(it.ID)
		raw := model.RawListing{
			ID:       id,
			Title:    it.Name,
			Price:    string(it.Price),
			Status:   it.Status,
			SellerID: string(it.Seller.ID),
		}
		if id != "" {
			raw.URL = itemURLBase + id
		}
		if len(it.Thumbnails) > 0 {
			raw.ImageURL = originalImage(it.Thumbnails[0])
		}
		listings = append(listings, raw)
	}
	return listings, nil
}

func originalImage(thumb string) string {
	u, err := url.Parse(thumb)
	if err != nil || u.Path == "" {
		return ""
	}
	return imageURLBase + path.Base(u.Path)
}
