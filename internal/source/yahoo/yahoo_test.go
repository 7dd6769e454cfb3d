package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shopwatch/internal/model"
	"shopwatch/internal/source"
)

var testNow = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/" + name) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestParse(t *testing.T) {
	got, err := Parse(loadFixture(t, "yahoo_search.html"), testNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []model.RawListing{
		{
			ID: "x1001", SellerID: "seller_a", Title: "初音ミク 1/7 フィギュア",
			URL:      "https://page.auctions.yahoo.co.jp/jp/auction/x1001",
			ImageURL: "https://auctions.c.yimg.jp/images.auctions.yahoo.co.jp/image/x1001.jpg",
			Price:    "4500", BuyNowPrice: "9000", EndsAt: "1714608000", Bids: "3", Status: "bidding",
		},
		{
			ID: "x1002", SellerID: "seller_b", Title: "初音ミク 缶バッジ",
			URL:      "https://page.auctions.yahoo.co.jp/jp/auction/x1002",
			ImageURL: "https://auctions.c.yimg.jp/images.auctions.yahoo.co.jp/image/x1002.jpg",
			Price:    "1200", EndsAt: "1714608000", Bids: "0", Status: "open",
		},
		{
			ID: "x1003", SellerID: "seller_c", Title: "初音ミク アクリルスタンド",
			URL:   "https://page.auctions.yahoo.co.jp/jp/auction/x1003",
			Price: "800", BuyNowPrice: "800", EndsAt: "1714000000", Status: "closed",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse(loadFixture(t, "yahoo_empty.html"), testNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no listings, got %d", len(got))
	}
}

func TestParseUnexpectedPage(t *testing.T) {
	_, err := Parse([]byte("<html><body><p>maintenance</p></body></html>"), testNow)
	if err == nil {
		t.Fatal("expected error for page without results, got nil")
	}
}

func TestParseBids(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "3", want: 3},
		{in: " 12件 ", want: 12},
		{in: "-", want: -1},
		{in: "", want: -1},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseBids(tt.in)); diff != "" {
			t.Errorf("parseBids(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestFetch(t *testing.T) {
	page := loadFixture(t, "yahoo_search.html")

	tests := []struct {
		name      string
		status    int
		body      []byte
		wantItems int
		wantErr   bool
	}{
		{name: "successful fetch", status: http.StatusOK, body: page, wantItems: 3},
		{name: "http error status", status: http.StatusServiceUnavailable, body: []byte("busy"), wantErr: true},
		{name: "unexpected page", status: http.StatusOK, body: []byte("<html></html>"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != searchPath {
					http.NotFound(w, r)
					return
				}
				gotQuery = r.URL.Query().Get("p")
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			t.Cleanup(srv.Close)

			a := New(Options{BaseURL: srv.URL, Now: func() time.Time { return testNow }})
			got, err := a.Fetch(context.Background(), "初音ミク")

			if tt.wantErr {
				var fe *source.FetchError
				if !errors.As(err, &fe) {
					t.Fatalf("expected *source.FetchError, got %v", err)
				}
				if diff := cmp.Diff(model.SourceYahoo, fe.Source); diff != "" {
					t.Errorf("source mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff("初音ミク", fe.Keyword); diff != "" {
					t.Errorf("keyword mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff("初音ミク", gotQuery); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantItems, len(got)); diff != "" {
				t.Errorf("item count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
