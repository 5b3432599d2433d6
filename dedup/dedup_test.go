package dedup

import (
	"testing"
	"time"

	"mabletask/tracker/models"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestAdmitFirstVisit(t *testing.T) {
	p := NewPolicy(0, DefaultExcludedPaths)
	ledger := models.VisitLedger{}

	if got := p.Admit(ledger, "https://shop.test/p/soap-42", t0); got != Accepted {
		t.Fatalf("Admit() = %v, want accepted", got)
	}
	entry := ledger["https://shop.test/p/soap-42"]
	if entry.Count != 1 || !entry.Timestamp.Equal(t0) {
		t.Fatalf("ledger entry = %+v, want {t0, 1}", entry)
	}
}

func TestAdmitWithinCooldownRejects(t *testing.T) {
	p := NewPolicy(30*time.Second, nil)
	ledger := models.VisitLedger{}
	p.Admit(ledger, "https://shop.test/cart", t0)

	for _, dt := range []time.Duration{0, time.Second, 29*time.Second + 999*time.Millisecond} {
		if got := p.Admit(ledger, "https://shop.test/cart", t0.Add(dt)); got != Cooldown {
			t.Errorf("Admit(+%v) = %v, want cooldown", dt, got)
		}
	}
	if entry := ledger["https://shop.test/cart"]; entry.Count != 1 || !entry.Timestamp.Equal(t0) {
		t.Fatalf("rejections must not touch the ledger, got %+v", entry)
	}
}

func TestAdmitAfterCooldownCountsUp(t *testing.T) {
	p := NewPolicy(30*time.Second, nil)
	ledger := models.VisitLedger{}

	at := t0
	for want := 1; want <= 4; want++ {
		if got := p.Admit(ledger, "https://shop.test/", at); got != Accepted {
			t.Fatalf("visit %d: Admit() = %v, want accepted", want, got)
		}
		if c := ledger["https://shop.test/"].Count; c != want {
			t.Fatalf("visit %d: count = %d", want, c)
		}
		at = at.Add(30 * time.Second)
	}
}

func TestAdmitKeysByNormalizedURL(t *testing.T) {
	p := NewPolicy(30*time.Second, nil)
	ledger := models.VisitLedger{}
	p.Admit(ledger, "https://Shop.Test/p/1#top", t0)

	if got := p.Admit(ledger, "https://shop.test/p/1", t0.Add(time.Second)); got != Cooldown {
		t.Fatalf("fragment/case variants should share a ledger key, got %v", got)
	}
	if len(ledger) != 1 {
		t.Fatalf("ledger has %d keys, want 1", len(ledger))
	}
}

func TestAdmitExcludedPathNeverRecorded(t *testing.T) {
	p := NewPolicy(30*time.Second, DefaultExcludedPaths)
	ledger := models.VisitLedger{}

	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * time.Hour)
		if got := p.Admit(ledger, "/admin/login", at); got != Excluded {
			t.Fatalf("Admit(/admin/login) = %v, want excluded", got)
		}
		if got := p.Admit(ledger, "https://shop.test/admin/orders", at); got != Excluded {
			t.Fatalf("Admit(admin orders) = %v, want excluded", got)
		}
	}
	if len(ledger) != 0 {
		t.Fatalf("excluded paths leaked into ledger: %v", ledger)
	}
}

func TestDecisionString(t *testing.T) {
	if Accepted.String() != "accepted" || Excluded.String() != "excluded" || Cooldown.String() != "cooldown" {
		t.Fatal("unexpected decision names")
	}
}
