package token

import "testing"

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"can I swap SOL for USDC", IntentSwap},
		{"exchange my tokens please", IntentSwap},
		{"how do I stake SOL", IntentStake},
		{"what about staking rewards", IntentStake},
		{"what's the price of ETH", IntentTokenInfo},
		{"token info for BONK", IntentTokenInfo},
		{"hello there", IntentNone},
	}
	for _, tc := range cases {
		if got := ClassifyIntent(tc.text); got != tc.want {
			t.Fatalf("ClassifyIntent(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestExtractTokenPair(t *testing.T) {
	pair := ExtractTokenPair("swap SOL for USDC")
	if pair.From != "SOL" || pair.To != "USDC" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestExtractTokenPairAmountPattern(t *testing.T) {
	pair := ExtractTokenPair("i want to trade 10 sol... say 10SOL into 25USDC")
	if pair.From != "SOL" || pair.To != "USDC" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestExtractTokenPairSingleTokenOnly(t *testing.T) {
	pair := ExtractTokenPair("swap 10 SOL for more SOL")
	if pair.From != "SOL" {
		t.Fatalf("expected from SOL, got %+v", pair)
	}
	if pair.To != "" {
		t.Fatalf("expected empty to for duplicate symbol, got %q", pair.To)
	}
}

func TestExtractTokenPairIgnoresUnknownSymbols(t *testing.T) {
	pair := ExtractTokenPair("swap ABCDEF for USDC")
	if pair.From != "USDC" || pair.To != "" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}

func TestExtractSingleToken(t *testing.T) {
	if got := ExtractSingleToken("what's the price of ETH"); got != "ETH" {
		t.Fatalf("expected ETH, got %q", got)
	}
	if got := ExtractSingleToken("no symbols here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := ExtractSingleToken("buy 5SOL today"); got != "SOL" {
		t.Fatalf("expected SOL, got %q", got)
	}
}

func TestExtractTokenPairTrimsPunctuation(t *testing.T) {
	pair := ExtractTokenPair("swap (SOL) for USDC?")
	if pair.From != "SOL" || pair.To != "USDC" {
		t.Fatalf("unexpected pair: %+v", pair)
	}
}
