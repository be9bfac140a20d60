package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	if c.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", c.Len())
	}

	p, ok := c.Get("buy_100")
	if !ok {
		t.Fatal("Get(buy_100) not found")
	}
	if p.Amount != 100 || p.Price != 160 || p.Points != 2 || p.Discount != 10 {
		t.Fatalf("buy_100 = %+v", p)
	}

	if _, ok := c.Get("buy_9000"); ok {
		t.Fatal("Get(buy_9000) must not be found")
	}
}

func TestKeysSortedByAmount(t *testing.T) {
	c := Default()

	keys := c.Keys()
	if len(keys) != 7 {
		t.Fatalf("Keys() returned %d keys, want 7", len(keys))
	}

	var prev int64 = -1
	for _, k := range keys {
		p, ok := c.Get(k)
		if !ok {
			t.Fatalf("Keys() returned unknown key %q", k)
		}
		if p.Amount <= prev {
			t.Fatalf("keys are not sorted by amount: %v", keys)
		}
		prev = p.Amount
	}
}

func TestKeysReturnsIndependentCopy(t *testing.T) {
	c := Default()

	keys := c.Keys()
	keys[0] = "mutated"

	if got := c.Keys()[0]; got == "mutated" {
		t.Fatalf("mutating the returned slice must not affect the catalog")
	}
}

func TestByAmountPrice(t *testing.T) {
	c := Default()

	p, ok := c.ByAmountPrice(500, 780)
	if !ok {
		t.Fatal("ByAmountPrice(500, 780) not found")
	}
	if p.Points != 8 {
		t.Fatalf("points = %d, want 8", p.Points)
	}

	// Совпадение только по количеству недостаточно.
	if _, ok := c.ByAmountPrice(500, 999); ok {
		t.Fatal("ByAmountPrice(500, 999) must not match")
	}
	if _, ok := c.ByAmountPrice(42, 80); ok {
		t.Fatal("ByAmountPrice(42, 80) must not match")
	}
}
