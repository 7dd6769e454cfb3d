package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-cmp/cmp"

	"shopwatch/internal/model"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    HeaderSigner
		wantErr bool
	}{
		{name: "empty", raw: "", want: HeaderSigner{}},
		{
			name: "several",
			raw:  "Cookie=session=abc; X-Platform=web ;",
			want: HeaderSigner{"Cookie": "session=abc", "X-Platform": "web"},
		},
		{name: "missing value separator", raw: "Cookie", wantErr: true},
		{name: "missing key", raw: "=v", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseHeaders() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", NewFetchError(model.SourceYahoo, "miku", cause))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to find *FetchError")
	}
	if diff := cmp.Diff(model.SourceYahoo, fe.Source); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("X-Test") != "1" {
				http.Error(w, "missing header", http.StatusForbidden)
				return
			}
			_, _ = fmt.Fprintf(w, "q=%s", r.URL.Query().Get("q"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	signer := Chain(NoSigner, HeaderSigner{"X-Test": "1"})
	ctx := context.Background()

	tests := []struct {
		name     string
		path     string
		signer   RequestSigner
		wantBody string
		wantErr  bool
	}{
		{name: "success", path: "/ok", signer: signer, wantBody: "q=ミク"},
		{name: "signer missing", path: "/ok", signer: NoSigner, wantErr: true},
		{name: "not found", path: "/nope", signer: signer, wantErr: true},
		{name: "timeout", path: "/slow", signer: signer, wantErr: true},
		{
			name: "signer error",
			path: "/ok",
			signer: SignerFunc(func(context.Context, *resty.Request) error {
				return errors.New("no key")
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := Get(ctx, client, tt.signer, tt.path, map[string]string{"q": "ミク"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantBody, string(body)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := MaxBodySize
		if r.URL.Path == "/large" {
			size++
		}
		_, _ = w.Write(bytes.Repeat([]byte("x"), size))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: 10 * time.Second})

	tests := []struct {
		name    string
		path    string
		wantLen int
		wantErr bool
	}{
		{name: "at limit", path: "/full", wantLen: MaxBodySize},
		{name: "over limit", path: "/large", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := Get(context.Background(), client, nil, tt.path, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantLen, len(body)); diff != "" {
				t.Errorf("body length mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
