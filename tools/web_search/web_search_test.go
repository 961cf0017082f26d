package web_search

import "testing"

func TestNeedsKey(t *testing.T) {
	cases := []struct {
		provider Provider
		want     bool
	}{
		{SerperProvider, true},
		{BraveProvider, true},
		{WikipediaProvider, false},
		{DuckDuckGoProvider, false},
	}
	for _, tc := range cases {
		if got := tc.provider.NeedsKey(); got != tc.want {
			t.Fatalf("NeedsKey(%s) = %t, want %t", tc.provider, got, tc.want)
		}
	}
}

func TestNewWebSearcher(t *testing.T) {
	for _, p := range []Provider{SerperProvider, BraveProvider, WikipediaProvider, DuckDuckGoProvider} {
		s, err := NewWebSearcher(p, "key")
		if err != nil || s == nil {
			t.Fatalf("NewWebSearcher(%s) failed: %v", p, err)
		}
	}
	if _, err := NewWebSearcher(Provider("bing"), ""); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
