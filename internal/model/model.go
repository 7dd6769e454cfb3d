// Package model defines the domain types used across the application.
package model

import "time"

// Source identifies one external shopping or auction site.
type Source string

// Supported sources.
const (
	SourceYahoo      Source = "yahoo"
	SourceMercari    Source = "mercari"
	SourceLashinbang Source = "lashinbang"
	SourceFeed       Source = "feed"
)

// Sources lists every known source in the order a run visits them.
var Sources = []Source{SourceYahoo, SourceMercari, SourceLashinbang, SourceFeed}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// RuleKind defines the type of keyword filter rule.
type RuleKind string

// Supported rule kinds.
const (
	RuleInclude   RuleKind = "include"
	RuleExclude   RuleKind = "exclude"
	RuleIncludeRe RuleKind = "include_re"
	RuleExcludeRe RuleKind = "exclude_re"
)

// Rule is a single title filter attached to a keyword.
type Rule struct {
	Kind  RuleKind
	Value string
}

// Keyword is a search string plus the sources it is enabled for.
type Keyword struct {
	Query string
	// Sources restricts the keyword to the listed sources. Empty means all.
	Sources []Source
	Rules   []Rule
}

// Enabled reports whether the keyword should be searched on src.
func (k Keyword) Enabled(src Source) bool {
	if len(k.Sources) == 0 {
		return true
	}
	for _, s := range k.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// RawListing is one item as delivered by a site, before any parsing.
// Adapters copy values verbatim; fields a site does not provide stay empty.
type RawListing struct {
	ID          string
	Title       string
	Price       string
	BuyNowPrice string
	Status      string
	URL         string
	ImageURL    string
	SellerID    string
	Bids        string
	EndsAt      string
}

// Status is the normalized listing state.
type Status string

// Supported statuses.
const (
	StatusActive  Status = "active"
	StatusSold    Status = "sold"
	StatusEnded   Status = "ended"
	StatusOutbid  Status = "outbid"
	StatusUnknown Status = "unknown"
)

// Item is a normalized listing.
type Item struct {
	ID     string
	Source Source
	Title  string
	// Price is in minor units (yen have none, so this is plain yen).
	Price       int64
	BuyNowPrice int64
	Status      Status
	// Bids is -1 when the site does not report a bid count.
	Bids       int
	URL        string
	ImageURL   string
	SellerID   string
	EndsAt     time.Time
	ObservedAt time.Time
}

// SnapshotKey identifies the snapshot of one keyword on one source.
type SnapshotKey struct {
	Keyword string
	Source  Source
}

// Snapshot maps item IDs to the last seen version of each item.
type Snapshot map[string]Item

// ChangeKind classifies how an item differs from its previous state.
type ChangeKind string

// Supported change kinds.
const (
	ChangeNew           ChangeKind = "new"
	ChangePriceDropped  ChangeKind = "price_dropped"
	ChangeStatusChanged ChangeKind = "status_changed"
	ChangeUnchanged     ChangeKind = "unchanged"
)

// ChangeRecord is one classified item of a run.
type ChangeRecord struct {
	Key  SnapshotKey
	Item Item
	Kind ChangeKind
}

// RunLog summarizes what one source produced during a run.
type RunLog struct {
	ID            int64
	Source        Source
	StartedAt     time.Time
	Errors        int
	Pages         int
	Items         int
	New           int
	Discounted    int
	StatusChanged int
}
