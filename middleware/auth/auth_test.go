package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Bearer abc123", want: "abc123"},
		{in: "bearer   abc123  ", want: "abc123"},
		{in: "BEARER\tabc", want: "abc"},
		{in: "Token xyz", want: "xyz"},
		{in: "  raw-token  ", want: "raw-token"},
		{in: "Bearerabc", want: "Bearerabc"},
		{in: "Bearer", wantErr: true},
		{in: "Bearer    ", wantErr: true},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
	}

	for _, tc := range cases {
		got, err := Extract(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("Extract(%q): expected ErrUnauthorized, got %q, %v", tc.in, got, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Extract(%q): unexpected error %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("Extract(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestExtractor_MissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/vault/items", nil)
	if _, err := (Extractor{}).FromRequest(r); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestExtractor_CustomHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/vault/items", nil)
	r.Header.Set("X-Vault-Token", " Bearer k1 ")
	r.Header.Set("Authorization", "Bearer other")

	got, err := Extractor{Header: "X-Vault-Token"}.FromRequest(r)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "k1" {
		t.Fatalf("expected k1, got %q", got)
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	if _, ok := IdentityFrom(context.Background()); ok {
		t.Fatalf("expected no identity on empty context")
	}
	ctx := WithIdentity(context.Background(), "caller")
	got, ok := IdentityFrom(ctx)
	if !ok || got != "caller" {
		t.Fatalf("expected caller, got %q (%v)", got, ok)
	}
}
