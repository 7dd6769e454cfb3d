// Package source defines the contract every site adapter implements and
// the HTTP plumbing they share.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"shopwatch/internal/model"
)

// DefaultTimeout bounds every request an adapter makes.
const DefaultTimeout = 15 * time.Second

// MaxBodySize caps how much of a response an adapter will read.
const MaxBodySize = 8 * 1024 * 1024

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Adapter fetches the first result page for a keyword from one site.
type Adapter interface {
	Name() model.Source
	Fetch(ctx context.Context, keyword string) ([]model.RawListing, error)
}

// FetchError reports that a source could not be searched for a keyword.
type FetchError struct {
	Source  model.Source
	Keyword string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %q: %v", e.Source, e.Keyword, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err for src and keyword.
func NewFetchError(src model.Source, keyword string, err error) *FetchError {
	return &FetchError{Source: src, Keyword: keyword, Err: err}
}

// RequestSigner adds whatever headers, cookies or tokens a site needs
// before a request is sent.
type RequestSigner interface {
	Sign(ctx context.Context, req *resty.Request) error
}

// SignerFunc adapts a function to RequestSigner.
type SignerFunc func(ctx context.Context, req *resty.Request) error

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, req *resty.Request) error {
	return f(ctx, req)
}

// NoSigner leaves requests untouched.
var NoSigner RequestSigner = SignerFunc(func(context.Context, *resty.Request) error { return nil })

// HeaderSigner sets a fixed set of headers on every request.
// A "Cookie" entry is sent as-is.
type HeaderSigner map[string]string

// Sign sets the headers on req.
func (h HeaderSigner) Sign(_ context.Context, req *resty.Request) error {
	for k, v := range h {
		req.SetHeader(k, v)
	}
	return nil
}

// Chain runs signers in order, stopping at the first error.
func Chain(signers ...RequestSigner) RequestSigner {
	return SignerFunc(func(ctx context.Context, req *resty.Request) error {
		for _, s := range signers {
			if s == nil {
				continue
			}
			if err := s.Sign(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseHeaders parses "Key=Value;Key2=Value2" into a HeaderSigner.
func ParseHeaders(raw string) (HeaderSigner, error) {
	h := HeaderSigner{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", part)
		}
		h[k] = strings.TrimSpace(v)
	}
	return h, nil
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// NewClient returns a resty client with a cookie jar, browser user agent
// and a fixed timeout.
func NewClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	if opts.BaseURL != "" {
		client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	}
	if jar, err := cookiejar.New(nil); err == nil {
		client.SetCookieJar(jar)
	}
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}
	client.SetHeader("User-Agent", userAgent)
	client.SetTimeout(timeout)
	return client
}

// Get signs and sends a GET request, returning the body of a 2xx response.
func Get(ctx context.Context, client *resty.Client, signer RequestSigner, path string, query map[string]string) ([]byte, error) {
	req := client.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if signer != nil {
		if err := signer.Sign(ctx, req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	req.SetDoNotParseResponse(true)
	res, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	raw := res.RawBody()
	defer raw.Close()

	if !res.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode())
	}

	body, err := io.ReadAll(io.LimitReader(raw, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("response larger than %d bytes", MaxBodySize)
	}
	return body, nil
}
