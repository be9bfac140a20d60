package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkorchagin/starshop-bot/internal/catalog"
)

var testPackage = catalog.Package{Amount: 100, Price: 160, Points: 2, Discount: 10}

func TestStartAndGet(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)

	table.Start(1, "buy_100", testPackage)

	s, ok := table.Get(1)
	if !ok {
		t.Fatalf("expected active session")
	}
	if s.State != StateAwaitingHandle {
		t.Fatalf("State = %v, want StateAwaitingHandle", s.State)
	}
	if s.Package != testPackage {
		t.Fatalf("Package = %+v, want %+v", s.Package, testPackage)
	}

	if _, ok := table.Get(2); ok {
		t.Fatalf("unexpected session for another user")
	}
}

func TestStartReplacesPreviousSession(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)

	table.Start(1, "buy_100", testPackage)
	if !table.SetHandle(1, "alice") {
		t.Fatalf("SetHandle failed")
	}

	other := catalog.Package{Amount: 50, Price: 80, Points: 1}
	table.Start(1, "buy_50", other)

	s, ok := table.Get(1)
	if !ok {
		t.Fatalf("expected active session")
	}
	if s.State != StateAwaitingHandle || s.Handle != "" || s.PackageKey != "buy_50" {
		t.Fatalf("session not fully replaced: %+v", s)
	}
}

func TestSetHandleAdvancesState(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)
	table.Start(1, "buy_100", testPackage)

	if !table.SetHandle(1, "alice") {
		t.Fatalf("SetHandle failed")
	}

	s, _ := table.Get(1)
	if s.State != StateAwaitingProof {
		t.Fatalf("State = %v, want StateAwaitingProof", s.State)
	}
	if s.Handle != "alice" {
		t.Fatalf("Handle = %q, want alice", s.Handle)
	}

	// Повторная установка хендла в состоянии ожидания оплаты не допускается.
	if table.SetHandle(1, "bob") {
		t.Fatalf("SetHandle must fail outside StateAwaitingHandle")
	}
}

func TestSetHandleWithoutSession(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)
	if table.SetHandle(1, "alice") {
		t.Fatalf("SetHandle must fail without session")
	}
}

func TestCancel(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)

	if table.Cancel(1) {
		t.Fatalf("Cancel without session must report false")
	}

	table.Start(1, "buy_100", testPackage)
	if !table.Cancel(1) {
		t.Fatalf("Cancel with session must report true")
	}
	if _, ok := table.Get(1); ok {
		t.Fatalf("session must be removed after cancel")
	}
}

func TestIdleTimeout(t *testing.T) {
	table := NewTable(time.Minute)

	now := time.Now()
	table.now = func() time.Time { return now }

	table.Start(1, "buy_100", testPackage)

	now = now.Add(30 * time.Second)
	if _, ok := table.Get(1); !ok {
		t.Fatalf("session must survive within the idle timeout")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := table.Get(1); ok {
		t.Fatalf("idle session must expire")
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	table := NewTable(time.Minute)

	now := time.Now()
	table.now = func() time.Time { return now }

	table.Start(1, "buy_100", testPackage)
	table.Start(2, "buy_50", testPackage)

	now = now.Add(2 * time.Minute)
	table.Start(3, "buy_100", testPackage)

	if removed := table.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d sessions, want 2", removed)
	}
	if _, ok := table.Get(3); !ok {
		t.Fatalf("fresh session must survive the sweep")
	}
}

func TestTakeForProof(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)

	if _, ok := table.TakeForProof(1); ok {
		t.Fatalf("TakeForProof without session must report false")
	}

	table.Start(1, "buy_100", testPackage)
	if _, ok := table.TakeForProof(1); ok {
		t.Fatalf("TakeForProof must fail outside StateAwaitingProof")
	}
	if _, ok := table.Get(1); !ok {
		t.Fatalf("failed take must leave the session intact")
	}

	table.SetHandle(1, "alice")
	s, ok := table.TakeForProof(1)
	if !ok {
		t.Fatalf("expected to take the session")
	}
	if s.Handle != "alice" || s.Package != testPackage {
		t.Fatalf("taken session = %+v", s)
	}
	if _, ok := table.Get(1); ok {
		t.Fatalf("taken session must be removed")
	}
}

func TestTakeForProofSingleWinner(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)
	table.Start(1, "buy_100", testPackage)
	table.SetHandle(1, "alice")

	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := table.TakeForProof(1); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestConcurrentUsersDoNotInterfere(t *testing.T) {
	table := NewTable(DefaultIdleTimeout)

	var wg sync.WaitGroup
	for id := int64(1); id <= 64; id++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			table.Start(userID, "buy_100", testPackage)
			table.SetHandle(userID, "alice")
			if s, ok := table.Get(userID); !ok || s.State != StateAwaitingProof {
				t.Errorf("user %d: unexpected session state", userID)
			}
			table.Cancel(userID)
		}(id)
	}
	wg.Wait()
}
