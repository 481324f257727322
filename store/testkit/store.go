// Package testkit provides the conformance suite every store backend runs.
package testkit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/custodia-sh/custodia/model"
	"github.com/custodia-sh/custodia/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

// RunStoreConformance exercises the store.Store contract against a fresh
// backend per subtest.
func RunStoreConformance(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("GetAbsent", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "ghost")
		if !store.IsNotFound(err) {
			t.Fatalf("Get absent: got %v want ErrNotFound", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		s := open(t)
		in := &model.Account{ID: "alice", Name: "Alice", Balance: dec(t, "10.50"), Certificate: "CERTPEM"}
		if err := s.Put(ctx, in); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Name != "Alice" || got.Certificate != "CERTPEM" {
			t.Fatalf("fields: got %+v", got)
		}
		// Decimal precision must survive storage exactly, trailing zeros included.
		if got.Balance.String() != "10.50" {
			t.Fatalf("balance: got %q want %q", got.Balance.String(), "10.50")
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, &model.Account{ID: "alice", Name: "Alice", Balance: dec(t, "1")}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ctx, &model.Account{ID: "alice", Name: "Alice", Balance: dec(t, "2")}); err != nil {
			t.Fatalf("Put (replace): %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !got.Balance.Equal(dec(t, "2")) {
			t.Fatalf("balance after replace: got %s want 2", got.Balance)
		}
	})

	t.Run("PutEmptyID", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, &model.Account{Name: "nobody"}); err == nil {
			t.Fatalf("Put with empty id succeeded")
		}
	})

	t.Run("Exists", func(t *testing.T) {
		s := open(t)
		ok, err := s.Exists(ctx, "alice")
		if err != nil || ok {
			t.Fatalf("Exists before Put: got (%v, %v)", ok, err)
		}
		if err := s.Put(ctx, &model.Account{ID: "alice", Balance: decimal.Zero}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		ok, err = s.Exists(ctx, "alice")
		if err != nil || !ok {
			t.Fatalf("Exists after Put: got (%v, %v)", ok, err)
		}
	})

	t.Run("ApplyBatchVisible", func(t *testing.T) {
		s := open(t)
		batch := []*model.Account{
			{ID: "alice", Balance: dec(t, "7.25")},
			{ID: "bob", Balance: dec(t, "3.25")},
		}
		if err := s.Apply(ctx, batch); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		for _, want := range batch {
			got, err := s.Get(ctx, want.ID)
			if err != nil {
				t.Fatalf("Get %s: %v", want.ID, err)
			}
			if !got.Balance.Equal(want.Balance) {
				t.Fatalf("balance %s: got %s want %s", want.ID, got.Balance, want.Balance)
			}
		}
	})

	t.Run("ApplyRejectsEmptyID", func(t *testing.T) {
		s := open(t)
		err := s.Apply(ctx, []*model.Account{{ID: "alice", Balance: decimal.Zero}, {Balance: decimal.Zero}})
		if err == nil {
			t.Fatalf("Apply with empty id succeeded")
		}
		// All-or-nothing: the valid record must not have been applied.
		if ok, _ := s.Exists(ctx, "alice"); ok {
			t.Fatalf("partial batch applied")
		}
	})

	t.Run("ScanSorted", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"carol", "alice", "bob"} {
			if err := s.Put(ctx, &model.Account{ID: id, Balance: decimal.Zero}); err != nil {
				t.Fatalf("Put %s: %v", id, err)
			}
		}
		all, err := s.Scan(ctx)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Scan count: got %d want 3", len(all))
		}
		for i, want := range []string{"alice", "bob", "carol"} {
			if all[i].ID != want {
				t.Fatalf("Scan order[%d]: got %s want %s", i, all[i].ID, want)
			}
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, &model.Account{ID: "alice", Name: "Alice", Balance: dec(t, "5")}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		got.Name = "Mallory"
		got.Balance = dec(t, "999")
		again, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get again: %v", err)
		}
		if again.Name != "Alice" || !again.Balance.Equal(dec(t, "5")) {
			t.Fatalf("store state mutated through returned record: %+v", again)
		}
	})
}
