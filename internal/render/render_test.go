package render

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"shopwatch/internal/model"
)

func record(id string, price int64, kind model.ChangeKind) model.ChangeRecord {
	return model.ChangeRecord{
		Key: model.SnapshotKey{Keyword: "miku", Source: model.SourceMercari},
		Item: model.Item{
			ID: id, Source: model.SourceMercari, Title: "title " + id, Price: price,
			Status: model.StatusActive, Bids: -1, URL: "https://jp.mercari.com/item/" + id,
		},
		Kind: kind,
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("output missing %q, got:\n%s", want, got)
	}
}

func TestRenderNoUpdates(t *testing.T) {
	tests := []struct {
		name    string
		records []model.ChangeRecord
	}{
		{name: "nil", records: nil},
		{name: "only unchanged", records: []model.ChangeRecord{record("a", 1, model.ChangeUnchanged)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(NoUpdates, Render(tt.records)); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderPriceDrop(t *testing.T) {
	got := Render([]model.ChangeRecord{record("id7", 4500, model.ChangePriceDropped)})
	requireContains(t, got, "[DISCOUNT] ---------- 1")
	requireContains(t, got, "JPY 4500")
	if strings.Contains(got, "5000") {
		t.Errorf("output should not mention the old price, got:\n%s", got)
	}
}

func TestRenderGroupsInFixedOrder(t *testing.T) {
	got := Render([]model.ChangeRecord{
		record("s1", 10, model.ChangeStatusChanged),
		record("d1", 20, model.ChangePriceDropped),
		record("n1", 30, model.ChangeNew),
		record("n2", 40, model.ChangeNew),
	})

	iNew := strings.Index(got, "[NEW] ---------- 2")
	iDrop := strings.Index(got, "[DISCOUNT] ---------- 1")
	iStatus := strings.Index(got, "[STATUS] ---------- 1")
	if iNew < 0 || iDrop < 0 || iStatus < 0 {
		t.Fatalf("missing group header in:\n%s", got)
	}
	if !(iNew < iDrop && iDrop < iStatus) {
		t.Errorf("groups out of order: new=%d discount=%d status=%d", iNew, iDrop, iStatus)
	}
	if strings.Index(got, "n1") > strings.Index(got, "n2") {
		t.Error("expected input order within a group")
	}
}

func TestRenderIgnoresUnchangedOrdering(t *testing.T) {
	a := []model.ChangeRecord{
		record("u1", 1, model.ChangeUnchanged),
		record("n1", 2, model.ChangeNew),
		record("u2", 3, model.ChangeUnchanged),
		record("d1", 4, model.ChangePriceDropped),
	}
	b := []model.ChangeRecord{
		record("d1", 4, model.ChangePriceDropped),
		record("u2", 3, model.ChangeUnchanged),
		record("n1", 2, model.ChangeNew),
		record("u1", 1, model.ChangeUnchanged),
	}
	if diff := cmp.Diff(Render(a), Render(b)); diff != "" {
		t.Errorf("reordering changed output (-a +b):\n%s", diff)
	}
	if strings.Contains(Render(a), "u1") {
		t.Error("unchanged record leaked into the report")
	}
}

func TestRenderAuctionDetails(t *testing.T) {
	r := model.ChangeRecord{
		Key: model.SnapshotKey{Keyword: "ミク", Source: model.SourceYahoo},
		Item: model.Item{
			ID: "x1", Source: model.SourceYahoo, Title: `<Miku> & "friends"`,
			Price: 1000, BuyNowPrice: 3000, Bids: 2, Status: model.StatusOutbid,
			URL:    "https://page.auctions.yahoo.co.jp/jp/auction/x1?a=1&b=2",
			EndsAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Kind: model.ChangeStatusChanged,
	}
	got := Render([]model.ChangeRecord{r})

	requireContains(t, got, "JPY 1000[3000]")
	requireContains(t, got, "2 bid")
	requireContains(t, got, "outbid")
	requireContains(t, got, "End 2024-05-01 21:00 JST")
	requireContains(t, got, "&lt;Miku&gt; &amp; &#34;friends&#34;")
	requireContains(t, got, "a=1&amp;b=2")
}

func TestHeader(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC)
	got := Header(now, []model.RunLog{
		{Source: model.SourceYahoo, Items: 12, Errors: 1},
		{Source: model.SourceMercari, Items: 3},
	})
	requireContains(t, got, "Time: 2024-05-01 09:30 JST")
	requireContains(t, got, "yahoo: entries 12    errors 1")
	requireContains(t, got, "mercari: entries 3    errors 0")
}

func TestSplit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("<a href=\"https://example.com\">ミク フィギュア</a><br>JPY 1000<br>")
	}
	text := b.String()

	tests := []struct {
		name  string
		text  string
		limit int
	}{
		{name: "many lines", text: text, limit: 500},
		{name: "telegram limit", text: text, limit: TelegramLimit},
		{name: "oversize single line", text: strings.Repeat("あ", 50) + "<br>", limit: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.limit)
			if len(chunks) < 2 {
				t.Fatalf("expected several chunks, got %d", len(chunks))
			}
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c); n > tt.limit {
					t.Errorf("chunk %d has %d runes, limit %d", i, n, tt.limit)
				}
			}
			if diff := cmp.Diff(tt.text, strings.Join(chunks, "")); diff != "" {
				t.Errorf("chunks do not reassemble (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitOversizeLineKeepsMarkupWhole(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		limit int
		want  string
	}{
		{
			name:  "long href",
			line:  `<a href="https://example.com/` + strings.Repeat("x", 60) + `">title</a><br>`,
			limit: 40,
			want:  "title<br>",
		},
		{
			name:  "long title with entities",
			line:  `<a href="https://example.com/x">` + strings.Repeat("ミク &amp; リン ", 10) + `</a><br>`,
			limit: 16,
			want:  strings.Repeat("ミク &amp; リン ", 10) + "<br>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.line, tt.limit)
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c); n > tt.limit {
					t.Errorf("chunk %d has %d runes, limit %d", i, n, tt.limit)
				}
				if strings.Count(c, "<") != strings.Count(c, "<br>") || strings.Count(c, ">") != strings.Count(c, "<br>") {
					t.Errorf("chunk %d has a broken tag: %q", i, c)
				}
				if strings.Count(c, "&") != strings.Count(c, "&amp;") {
					t.Errorf("chunk %d has a broken entity: %q", i, c)
				}
			}
			if diff := cmp.Diff(tt.want, strings.Join(chunks, "")); diff != "" {
				t.Errorf("chunks do not reassemble (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitShortText(t *testing.T) {
	got := Split(NoUpdates, TelegramLimit)
	if diff := cmp.Diff([]string{NoUpdates}, got); diff != "" {
		t.Errorf("Split() mismatch (-want +got):\n%s", diff)
	}
}
