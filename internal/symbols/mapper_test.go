package symbols

import "testing"

func TestTableResolution(t *testing.T) {
	table := NewTable()
	table.Add("2885", "RELIANCE", "NSE")
	table.Add("11536", "TCS", "NSE")

	symbol, ok := table.ResolveBrokerSymbol("2885")
	if !ok || symbol != "RELIANCE" {
		t.Fatalf("got %q/%v, want RELIANCE/true", symbol, ok)
	}

	exchange, ok := table.ResolveBrokerExchange("TCS")
	if !ok || exchange != "NSE" {
		t.Fatalf("got %q/%v, want NSE/true", exchange, ok)
	}

	if _, ok := table.ResolveBrokerSymbol("9999"); ok {
		t.Fatal("unknown token should not resolve")
	}
	if _, ok := table.ResolveBrokerExchange("UNKNOWN"); ok {
		t.Fatal("unknown symbol should not resolve")
	}
}
