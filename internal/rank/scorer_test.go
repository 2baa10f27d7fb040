package rank

import "testing"

func TestSmush(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"web-prod-server", "webprodserver"},
		{"Web_Prod.Server", "webprodserver"},
		{"db 01", "db01"},
		{"plain", "plain"},
		{"-_. \t", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := smush(tt.in); got != tt.want {
			t.Errorf("smush(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreTiers(t *testing.T) {
	web := Candidate{
		Name: "web-prod-server",
		Host: "10.1.2.3",
		Tags: []string{"production", "web"},
	}
	db := Candidate{
		Name: "db01",
		Host: "db01.internal.example.com",
	}

	tests := []struct {
		name  string
		query string
		cand  Candidate
		tier  Tier
		ok    bool
	}{
		{"exact is case-insensitive", "WEB-PROD-SERVER", web, TierExact, true},
		{"prefix on raw name", "web-p", web, TierPrefix, true},
		{"prefix through smushed name", "webprod", web, TierPrefix, true},
		{"separators in query are ignored", "web_prod", web, TierPrefix, true},
		{"name token", "prod", web, TierWordBoundary, true},
		{"host token", "internal", db, TierWordBoundary, true},
		{"substring of smushed name", "odser", web, TierContains, true},
		{"substring of host", "1.2", web, TierContains, true},
		{"substring of tag", "product", web, TierContains, true},
		{"no match", "mail", web, TierNone, false},
		{"smushed query not a smushed substring", "webprod", Candidate{Name: "web-staging"}, TierNone, false},
		{"empty query", "", web, TierNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Score(tt.query, tt.cand)
			if ok != tt.ok {
				t.Fatalf("Score(%q) ok = %v, want %v", tt.query, ok, tt.ok)
			}
			if m.Tier != tt.tier {
				t.Errorf("Score(%q) tier = %s, want %s", tt.query, m.Tier, tt.tier)
			}
			if ok && m.Weight != tt.tier.Weight() {
				t.Errorf("Score(%q) weight = %v, want %v", tt.query, m.Weight, tt.tier.Weight())
			}
		})
	}
}

func TestScorePrecedence(t *testing.T) {
	// A name that qualifies for several tiers must be classified by the
	// highest one.
	c := Candidate{Name: "prod", Host: "prod.example.com", Tags: []string{"prod"}}

	m, ok := Score("prod", c)
	if !ok {
		t.Fatal("Score() ok = false, want true")
	}
	if m.Tier != TierExact {
		t.Errorf("tier = %s, want %s", m.Tier, TierExact)
	}
}

func TestTierWeights(t *testing.T) {
	tests := []struct {
		tier Tier
		want float64
	}{
		{TierExact, 1.0},
		{TierPrefix, 0.8},
		{TierWordBoundary, 0.6},
		{TierContains, 0.4},
		{TierNone, 0.0},
	}

	for _, tt := range tests {
		if got := tt.tier.Weight(); got != tt.want {
			t.Errorf("%s.Weight() = %v, want %v", tt.tier, got, tt.want)
		}
	}
}
