// Package detect classifies fetched items against the previous snapshot.
package detect

import "shopwatch/internal/model"

// Counts holds the number of records of each kind.
type Counts struct {
	New           int
	PriceDropped  int
	StatusChanged int
	Unchanged     int
}

// Reportable returns the number of records that appear in a report.
func (c Counts) Reportable() int {
	return c.New + c.PriceDropped + c.StatusChanged
}

// Detect compares items with prior and returns one record per distinct item
// ID, in input order, together with the snapshot that replaces prior.
// When items repeat an ID, the first occurrence wins.
func Detect(key model.SnapshotKey, items []model.Item, prior model.Snapshot) ([]model.ChangeRecord, model.Snapshot) {
	records := make([]model.ChangeRecord, 0, len(items))
	updated := make(model.Snapshot, len(items))

	for _, it := range items {
		if _, dup := updated[it.ID]; dup {
			continue
		}
		updated[it.ID] = it
		records = append(records, model.ChangeRecord{
			Key:  key,
			Item: it,
			Kind: classify(it, prior),
		})
	}
	return records, updated
}

// Baseline records items without reporting any of them, for the first run
// of a keyword on a source.
func Baseline(key model.SnapshotKey, items []model.Item) ([]model.ChangeRecord, model.Snapshot) {
	records, updated := Detect(key, items, nil)
	for i := range records {
		records[i].Kind = model.ChangeUnchanged
	}
	return records, updated
}

func classify(it model.Item, prior model.Snapshot) model.ChangeKind {
	old, ok := prior[it.ID]
	switch {
	case !ok:
		return model.ChangeNew
	case it.Price < old.Price:
		return model.ChangePriceDropped
	case it.BuyNowPrice > 0 && old.BuyNowPrice > 0 && it.BuyNowPrice < old.BuyNowPrice:
		return model.ChangePriceDropped
	case it.Status != old.Status:
		return model.ChangeStatusChanged
	case old.Bids >= 0 && it.Bids > old.Bids:
		return model.ChangeStatusChanged
	default:
		return model.ChangeUnchanged
	}
}

// Summarize counts records by kind.
func Summarize(records []model.ChangeRecord) Counts {
	var c Counts
	for _, r := range records {
		switch r.Kind {
		case model.ChangeNew:
			c.New++
		case model.ChangePriceDropped:
			c.PriceDropped++
		case model.ChangeStatusChanged:
			c.StatusChanged++
		default:
			c.Unchanged++
		}
	}
	return c
}
