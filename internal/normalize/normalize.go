// Package normalize converts site-specific raw listings into items.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"shopwatch/internal/model"
)

// ParseError reports a raw listing that lacks a required field.
type ParseError struct {
	Source model.Source
	ID     string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s listing %q: field %s", e.Source, e.ID, e.Field)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + " is missing"
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var statusTable = map[model.Source]map[string]model.Status{
	model.SourceYahoo: {
		"open":    model.StatusActive,
		"bidding": model.StatusOutbid,
		"closed":  model.StatusEnded,
	},
	model.SourceMercari: {
		"on_sale":              model.StatusActive,
		"item_status_on_sale":  model.StatusActive,
		"sold_out":             model.StatusSold,
		"trading":              model.StatusSold,
		"item_status_sold_out": model.StatusSold,
		"item_status_trading":  model.StatusSold,
	},
	model.SourceLashinbang: {
		"":        model.StatusActive,
		"instock": model.StatusActive,
		"soldout": model.StatusSold,
	},
	model.SourceFeed: {
		"": model.StatusActive,
	},
}

// Normalize converts raw into an Item observed at observedAt.
// ID, Title and Price are required; everything else falls back to a default.
func Normalize(src model.Source, raw model.RawListing, observedAt time.Time) (model.Item, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.Item{}, &ParseError{Source: src, Field: "id"}
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return model.Item{}, &ParseError{Source: src, ID: id, Field: "title"}
	}
	if strings.TrimSpace(raw.Price) == "" {
		return model.Item{}, &ParseError{Source: src, ID: id, Field: "price"}
	}
	price, err := ParsePrice(raw.Price)
	if err != nil {
		return model.Item{}, &ParseError{Source: src, ID: id, Field: "price", Err: err}
	}

	item := model.Item{
		ID:         id,
		Source:     src,
		Title:      title,
		Price:      price,
		Status:     MapStatus(src, raw.Status),
		Bids:       -1,
		URL:        strings.TrimSpace(raw.URL),
		ImageURL:   strings.TrimSpace(raw.ImageURL),
		SellerID:   strings.TrimSpace(raw.SellerID),
		ObservedAt: observedAt,
	}
	if v, err := ParsePrice(raw.BuyNowPrice); err == nil {
		item.BuyNowPrice = v
	}
	if n, err := strconv.Atoi(strings.TrimSpace(raw.Bids)); err == nil && n >= 0 {
		item.Bids = n
	}
	if sec, err := strconv.ParseFloat(strings.TrimSpace(raw.EndsAt), 64); err == nil && sec > 0 {
		item.EndsAt = time.Unix(int64(sec), 0).UTC()
	}
	return item, nil
}

// MapStatus maps a site status string to a Status.
// Unrecognized strings become StatusUnknown.
func MapStatus(src model.Source, raw string) model.Status {
	table, ok := statusTable[src]
	if !ok {
		return model.StatusUnknown
	}
	if st, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return st
	}
	return model.StatusUnknown
}

var priceReplacer = strings.NewReplacer(
	",", "", "，", "", "¥", "", "￥", "", "円", "", "JPY", "", "jpy", "", " ", "", "　", "",
)

// ParsePrice coerces a displayed price such as "¥1,234" or "1,234円"
// into an integer amount. Fractions are truncated.
func ParsePrice(s string) (int64, error) {
	cleaned := priceReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty price %q", s)
	}
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		cleaned = cleaned[:i]
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative price %q", s)
	}
	return v, nil
}

// All normalizes every raw listing, returning the items that parsed and
// the errors of those that did not.
func All(src model.Source, raws []model.RawListing, observedAt time.Time) ([]model.Item, []error) {
	items := make([]model.Item, 0, len(raws))
	var errs []error
	for _, raw := range raws {
		it, err := Normalize(src, raw, observedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, it)
	}
	return items, errs
}
