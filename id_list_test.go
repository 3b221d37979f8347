package flagcore

import "testing"

func TestIDListApplyLinesAddAndRemove(t *testing.T) {
	l := &IDList{Name: "employees"}
	l.applyLines("+abc123\n+def456\n-abc123\n", 30)
	if l.contains("abc123") {
		t.Fatalf("expected abc123 to have been removed")
	}
	if !l.contains("def456") {
		t.Fatalf("expected def456 to remain a member")
	}
	if l.currentSize() != 30 {
		t.Fatalf("expected size to advance by the consumed length, got %d", l.currentSize())
	}
}

func TestIDListApplyLinesSkipsBlankAndMalformedLines(t *testing.T) {
	l := &IDList{Name: "employees"}
	l.applyLines("\n+\n+x\n   \n", 10)
	if !l.contains("x") {
		t.Fatalf("expected x to have been added")
	}
}

func TestIDListRegistryReconcileCreatesAndFetches(t *testing.T) {
	r := newIDListRegistry()
	needsFetch := r.reconcile(map[string]idListMeta{
		"employees": {Name: "employees", Size: 100, CreationTime: 1, URL: "https://example.org/employees", FileID: "f1"},
	})
	if len(needsFetch) != 1 {
		t.Fatalf("expected exactly 1 list needing a fetch, got %d", len(needsFetch))
	}
	if r.get("employees") == nil {
		t.Fatalf("expected employees to have been created in the registry")
	}
}

func TestIDListRegistryReconcileSkipsUnchangedSize(t *testing.T) {
	r := newIDListRegistry()
	r.set("employees", &IDList{Name: "employees", Size: 100, CreationTime: 1, FileID: "f1"})
	needsFetch := r.reconcile(map[string]idListMeta{
		"employees": {Name: "employees", Size: 100, CreationTime: 1, URL: "https://example.org/employees", FileID: "f1"},
	})
	if len(needsFetch) != 0 {
		t.Fatalf("expected no fetch when the remote size hasn't grown, got %d", len(needsFetch))
	}
}

func TestIDListRegistryReconcileResetsOnFileRotation(t *testing.T) {
	r := newIDListRegistry()
	r.set("employees", &IDList{Name: "employees", Size: 100, CreationTime: 1, FileID: "f1"})
	r.get("employees").applyLines("+stale\n", 0)

	needsFetch := r.reconcile(map[string]idListMeta{
		"employees": {Name: "employees", Size: 10, CreationTime: 2, URL: "https://example.org/employees", FileID: "f2"},
	})
	if len(needsFetch) != 1 {
		t.Fatalf("expected the rotated file to need a fresh fetch, got %d", len(needsFetch))
	}
	if r.get("employees").contains("stale") {
		t.Fatalf("expected the rotated list to have dropped stale membership")
	}
}

func TestIDListRegistryReconcileDeletesMissingLists(t *testing.T) {
	r := newIDListRegistry()
	r.set("gone", &IDList{Name: "gone"})
	r.reconcile(map[string]idListMeta{})
	if r.get("gone") != nil {
		t.Fatalf("expected a list missing from meta to be deleted")
	}
}
