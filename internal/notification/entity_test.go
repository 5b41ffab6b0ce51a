package notification

import (
	"testing"
)

func TestNewDefaults(t *testing.T) {
	e := New()
	if e.IsValid() {
		t.Fatalf("new record must be invalid, id=%d", e.ID())
	}
	if e.ProcessedType() != NotProcessed {
		t.Fatalf("ProcessedType = %v, want not_processed", e.ProcessedType())
	}
	if !e.EnablePreview() {
		t.Fatal("preview must default to enabled")
	}

	w := NewWithID(7, "mail")
	if !w.IsValid() || w.AppName() != "mail" || w.CTime() != 0 {
		t.Fatalf("NewWithID = id %d app %q ctime %d", w.ID(), w.AppName(), w.CTime())
	}
}

func TestNewFullStampsCreationTime(t *testing.T) {
	orig := nowMillis
	nowMillis = func() int64 { return 1700000000123 }
	t.Cleanup(func() { nowMillis = orig })

	e := NewFull("app", 0, "", "s", "b", []string{"a", "A", "dangling"}, nil, -1)
	if e.CTime() != 1700000000123 {
		t.Fatalf("CTime = %d", e.CTime())
	}
	if got := e.Actions(); len(got) != 2 {
		t.Fatalf("actions = %v, want even length", got)
	}
	if e.IsValid() {
		t.Fatal("unstored record must be invalid")
	}
}

func TestEntityCopiesAreIndependent(t *testing.T) {
	t.Parallel()
	hints := map[string]string{"urgency": "1"}
	actions := []string{"x", "X"}
	a := NewFull("app", 0, "", "", "", actions, hints, 0)

	// Mutating the caller's inputs does not leak into the record.
	hints["urgency"] = "2"
	actions[0] = "changed"
	if v, _ := a.Hint("urgency"); v != "1" {
		t.Fatalf("hint leaked from caller map: %q", v)
	}
	if a.Actions()[0] != "x" {
		t.Fatalf("action leaked from caller slice: %q", a.Actions()[0])
	}

	b := a
	b.SetSummary("copy")
	b.SetHints(map[string]string{"other": "v"})
	got := b.Actions()
	got[0] = "mutated"

	if a.Summary() != "" {
		t.Fatalf("summary leaked into original: %q", a.Summary())
	}
	if _, ok := a.Hint("other"); ok {
		t.Fatal("hints leaked into original")
	}
	if a.Actions()[0] != "x" {
		t.Fatal("returned slice aliases record storage")
	}
}

func TestEqualIgnoresInvalid(t *testing.T) {
	t.Parallel()
	if New().Equal(New()) {
		t.Fatal("invalid records must not compare equal")
	}
	if !NewWithID(3, "a").Equal(NewWithID(3, "b")) {
		t.Fatal("records with the same id must compare equal")
	}
	if NewWithID(3, "a").Equal(NewWithID(4, "a")) {
		t.Fatal("records with different ids must differ")
	}
}

func TestProcessedTypeString(t *testing.T) {
	t.Parallel()
	cases := map[ProcessedType]string{
		ProcessedNone:    "none",
		NotProcessed:     "not_processed",
		Processed:        "processed",
		Removed:          "removed",
		ProcessedType(9): "unknown",
	}
	for pt, want := range cases {
		if pt.String() != want {
			t.Fatalf("%d.String() = %q, want %q", int(pt), pt.String(), want)
		}
	}
	if ProcessedType(9).Valid() {
		t.Fatal("out of range type reported valid")
	}
}
