package identity

import "testing"

func TestDerive_TokenWins(t *testing.T) {
	id := Derive("abc123", "3 rooms", "Herzl 10, Haifa", 3)
	if id != "abc123" {
		t.Fatalf("expected token identity, got %s", id)
	}
}

func TestDerive_StableAcrossPriceChange(t *testing.T) {
	// Price is deliberately not part of the identity input; the same
	// listing observed at two prices must map to one identity.
	a := Derive("", "3 rooms apartment", "Herzl 10, Hadar, Haifa", 3)
	b := Derive("", "3 rooms apartment", "Herzl 10, Hadar, Haifa", 3)
	if a == "" {
		t.Fatal("expected non-empty fallback identity")
	}
	if a != b {
		t.Fatalf("identity not stable: %s vs %s", a, b)
	}
}

func TestDerive_DistinctListings(t *testing.T) {
	a := Derive("", "3 rooms", "Herzl 10, Haifa", 3)
	b := Derive("", "3 rooms", "Herzl 12, Haifa", 3)
	if a == b {
		t.Fatal("different addresses produced the same identity")
	}
}

func TestDerive_EmptyWhenNothingUsable(t *testing.T) {
	if id := Derive("", "", "", 0); id != "" {
		t.Fatalf("expected empty identity, got %s", id)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Herzl St. 10,  Haifa!! ")
	want := "herzl st 10 haifa"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalize_KeepsHebrew(t *testing.T) {
	got := Normalize("רחוב הרצל 10, חיפה")
	want := "רחוב הרצל 10 חיפה"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
