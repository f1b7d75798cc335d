package imagecheck

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"catalog-feed-miner/internal/product"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func response(status int, contentType string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(""))}
}

// newValidator routes HEAD requests through fn keyed by URL.
func newValidator(t *testing.T, fallbacks []string, fn func(url string) (*http.Response, error)) *Validator {
	t.Helper()
	v, err := New(Options{
		BaseURL:        "https://joyandco.com",
		FallbackURLs:   fallbacks,
		PlaceholderURL: "https://joyandco.com/static/placeholder.jpg",
		Client: &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodHead, r.Method)
			return fn(r.URL.String())
		})},
	})
	require.NoError(t, err)
	return v
}

func okImage(string) (*http.Response, error) { return response(http.StatusOK, "image/jpeg"), nil }

func TestNormalize(t *testing.T) {
	v := newValidator(t, nil, okImage)
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"http://x.com/a.jpg":       {"https://x.com/a.jpg", true},
		"HTTP://x.com/a.jpg?w=1":   {"https://x.com/a.jpg?w=1", true},
		"//cdn.x.com/a.jpg":        {"https://cdn.x.com/a.jpg", true},
		"/media/a.jpg":             {"https://joyandco.com/media/a.jpg", true},
		"media/a.jpg":              {"https://joyandco.com/media/a.jpg", true},
		"https://x.com/a.jpg":      {"https://x.com/a.jpg", true},
		"http://x.com/a b.jpg":     {"https://x.com/a b.jpg", true},
		"HTTPS://x.com/a%2Fb.jpg":  {"https://x.com/a%2Fb.jpg", true},
		"ftp://x.com/a.jpg":        {"", false},
		"data:image/png;base64,AA": {"", false},
		"":                         {"", false},
	}
	for in, tc := range cases {
		got, ok := v.Normalize(in)
		require.Equal(t, tc.ok, ok, in)
		require.Equal(t, tc.want, got, in)
	}
}

func TestValidate_HTTPRewrittenAndAccepted(t *testing.T) {
	var requested string
	v := newValidator(t, nil, func(u string) (*http.Response, error) {
		requested = u
		return response(http.StatusOK, "image/jpeg"), nil
	})

	r := v.Validate(context.Background(), "http://x.com/a.jpg")
	require.True(t, r.OK)
	require.NoError(t, r.Err)
	require.Equal(t, "https://x.com/a.jpg", r.URL)
	require.Equal(t, "https://x.com/a.jpg", requested)
}

func TestValidate_Failures(t *testing.T) {
	cases := map[string]struct {
		resp *http.Response
		want error
	}{
		"not found":    {response(http.StatusNotFound, "text/html"), ErrStatus},
		"html content": {response(http.StatusOK, "text/html; charset=utf-8"), ErrContentType},
		"no content":   {response(http.StatusOK, ""), ErrContentType},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := newValidator(t, nil, func(string) (*http.Response, error) { return tc.resp, nil })
			r := v.Validate(context.Background(), "https://x.com/a.jpg")
			require.False(t, r.OK)
			require.Equal(t, "https://x.com/a.jpg", r.URL)
			require.ErrorIs(t, r.Err, tc.want)
		})
	}
}

func TestValidate_NetworkErrorIsOptimistic(t *testing.T) {
	v := newValidator(t, nil, func(string) (*http.Response, error) {
		return nil, errors.New("dial tcp: no route to host")
	})

	r := v.Validate(context.Background(), "http://x.com/a.jpg")
	require.True(t, r.OK)
	require.Equal(t, "https://x.com/a.jpg", r.URL)

	var ie *Error
	require.ErrorAs(t, r.Err, &ie)
	require.True(t, ie.Optimistic)
}

func TestValidate_RejectsNonHTTPS(t *testing.T) {
	v := newValidator(t, nil, func(string) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	r := v.Validate(context.Background(), "ftp://x.com/a.jpg")
	require.False(t, r.OK)
	require.ErrorIs(t, r.Err, ErrNotHTTPS)
}

func TestValidateAll_SubstitutesFallbacks(t *testing.T) {
	var fallbackChecks int
	v := newValidator(t, []string{"/static/missing.jpg", "/static/fallback.jpg"}, func(u string) (*http.Response, error) {
		switch u {
		case "https://joyandco.com/good.jpg":
			return response(http.StatusOK, "image/png"), nil
		case "https://joyandco.com/static/fallback.jpg":
			fallbackChecks++
			return response(http.StatusOK, "image/jpeg"), nil
		default:
			return response(http.StatusNotFound, "text/html"), nil
		}
	})

	in := []product.Record{
		{Link: "https://joyandco.com/product/a", ImageLink: "http://joyandco.com/good.jpg"},
		{Link: "https://joyandco.com/product/b", ImageLink: "/bad.jpg"},
		{Link: "https://joyandco.com/product/c", ImageLink: ""},
	}
	out, results := v.ValidateAll(context.Background(), in)

	require.Len(t, out, 3)
	require.Len(t, results, 3)
	require.Equal(t, "https://joyandco.com/good.jpg", out[0].ImageLink)
	require.Equal(t, "https://joyandco.com/static/fallback.jpg", out[1].ImageLink)
	require.Equal(t, "https://joyandco.com/static/fallback.jpg", out[2].ImageLink)
	require.Equal(t, 1, fallbackChecks)

	// input untouched
	require.Equal(t, "http://joyandco.com/good.jpg", in[0].ImageLink)
	require.Equal(t, "/bad.jpg", in[1].ImageLink)
}

func TestValidateAll_PlaceholderWhenFallbacksFail(t *testing.T) {
	v := newValidator(t, []string{"/static/missing.jpg"}, func(string) (*http.Response, error) {
		return response(http.StatusNotFound, ""), nil
	})

	out, results := v.ValidateAll(context.Background(), []product.Record{{ImageLink: "/bad.jpg"}})
	require.Equal(t, "https://joyandco.com/static/placeholder.jpg", out[0].ImageLink)
	require.False(t, results[0].OK)
}

func TestValidateAll_Empty(t *testing.T) {
	v := newValidator(t, nil, okImage)
	out, results := v.ValidateAll(context.Background(), nil)
	require.Empty(t, out)
	require.Empty(t, results)
}
