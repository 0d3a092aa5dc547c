package reportview

import "testing"

func TestStoreRejectsStaleGeneration(t *testing.T) {
	store := NewStore()
	first := store.NextGeneration()
	second := store.NextGeneration()

	if store.Replace(first, []Report{{ID: "stale"}}) {
		t.Fatal("expected stale generation to be rejected")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
	if !store.Replace(second, []Report{{ID: "fresh"}}) {
		t.Fatal("expected current generation to be accepted")
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatal("expected fresh report in store")
	}
}

func TestStorePatchAndRemove(t *testing.T) {
	store := NewStore()
	generation := store.NextGeneration()
	store.Replace(generation, []Report{{ID: "a", Status: StatusNew}, {ID: "b"}, {ID: "c"}})

	if !store.Patch(Report{ID: "a", Status: StatusResolved}) {
		t.Fatal("expected patch of known id to succeed")
	}
	if store.Patch(Report{ID: "zzz"}) {
		t.Fatal("expected patch of unknown id to be ignored")
	}
	if got, _ := store.Get("a"); got.Status != StatusResolved {
		t.Fatalf("expected patched status, got %q", got.Status)
	}

	snapshot := store.Reports()
	if !store.Remove("b") {
		t.Fatal("expected remove to succeed")
	}
	if store.Remove("b") {
		t.Fatal("expected second remove to fail")
	}
	if got := ids(store.Reports()); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected order after remove: %v", got)
	}
	if len(snapshot) != 3 || snapshot[1].ID != "b" {
		t.Fatalf("earlier snapshot was modified: %v", ids(snapshot))
	}
	if _, ok := store.Get("c"); !ok {
		t.Fatal("index not rebuilt after remove")
	}
}
