package dedup

import (
	"slices"
	"strings"
	"testing"
)

func TestPrefixOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			name: "truncated title shares long prefix",
			a:    NormalizeTitle("International Conference on Labor Economics"),
			b:    NormalizeTitle("International Conference on Labor Econ."),
			want: true,
		},
		{
			name: "argument order does not matter",
			a:    NormalizeTitle("International Conference on Labor Econ."),
			b:    NormalizeTitle("International Conference on Labor Economics"),
			want: true,
		},
		{name: "short titles never match", a: NormalizeTitle("Econ A"), b: NormalizeTitle("Econ B"), want: false},
		{name: "identical but short", a: "econconf2026", b: "econconf2026", want: false},
		{name: "exactly fifteen characters", a: "abcdefghijklmno", b: "abcdefghijklmnopqrs", want: true},
		{name: "fourteen characters", a: "abcdefghijklmn", b: "abcdefghijklmnopqrs", want: false},
		{name: "diverging prefix", a: "summerschoolinmacro2026", b: "summerschoolinmicro2026", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrefixOverlap(tt.a, tt.b); got != tt.want {
				t.Errorf("PrefixOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

var natoWords = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet",
	"kilo", "lima", "mike", "november", "oscar", "papa", "quebec", "romeo", "sierra",
}

func TestTokenJaccard(t *testing.T) {
	reversed := slices.Clone(natoWords[:15])
	slices.Reverse(reversed)

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "Labor Economics Workshop", b: "labor economics workshop", want: 1},
		{name: "four of five tokens", a: "Workshop on Applied Labor Economics", b: "Applied Labor Economics Workshop", want: 0.8},
		{name: "fifteen of nineteen tokens", a: strings.Join(natoWords, " "), b: strings.Join(reversed, " "), want: 15.0 / 19.0},
		{name: "disjoint", a: "Macro Finance", b: "Development Policy", want: 0},
		{name: "empty side", a: "", b: "anything", want: 0},
		{name: "symbols only", a: "!!!", b: "???", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenJaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("TokenJaccard(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTitleKeyMatches(t *testing.T) {
	reversed := slices.Clone(natoWords[:15])
	slices.Reverse(reversed)

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "exact normalized equality", a: "Labor-Econ 2026", b: "Labor Econ, 2026", want: true},
		{name: "prefix rule", a: "International Conference on Labor Econ.", b: "International Conference on Labor Economics", want: true},
		{name: "jaccard at threshold is inclusive", a: "Workshop on Applied Labor Economics", b: "Applied Labor Economics Workshop", want: true},
		{name: "jaccard just under threshold", a: strings.Join(natoWords, " "), b: strings.Join(reversed, " "), want: false},
		{name: "short normalized title never matches", a: "Econ Conf", b: "Econ Conf", want: false},
		{name: "unrelated titles", a: "Public Economics Symposium", b: "Workshop in Political Economy", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewTitleKey(tt.a).Matches(NewTitleKey(tt.b)); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
