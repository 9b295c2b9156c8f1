package service

import (
	"testing"
	"time"
)

func TestWindowPreviousIsAdjacentAndEqualLength(t *testing.T) {
	w := Window{Start: testBase, End: testBase + 7*dayMs}
	prev := w.Previous()

	if prev.End != w.Start-1 {
		t.Fatalf("prev.End=%d, want %d", prev.End, w.Start-1)
	}
	if prev.End-prev.Start != w.End-w.Start {
		t.Fatalf("length mismatch: %d vs %d", prev.End-prev.Start, w.End-w.Start)
	}
}

func TestWindowDaysCeiling(t *testing.T) {
	w := Window{Start: testBase, End: testBase + 7*dayMs}
	if d := w.Days(); d != 7 {
		t.Fatalf("days=%d, want 7", d)
	}
	// 7 天半向上取整到 8
	w.End = testBase + 7*dayMs + dayMs/2
	if d := w.Days(); d != 8 {
		t.Fatalf("days=%d, want 8", d)
	}
	if d := (Window{Start: 100, End: 50}).Days(); d != 0 {
		t.Fatalf("invalid window days=%d, want 0", d)
	}
}

func TestComparisonWindowModes(t *testing.T) {
	w := Window{Start: testBase, End: testBase + 7*dayMs}

	prev := ComparisonWindow(w, ComparePrevious, Window{})
	if prev != w.Previous() {
		t.Fatalf("previous mode mismatch: %+v", prev)
	}

	month := ComparisonWindow(w, ComparePreviousMonth, Window{})
	wantStart := time.UnixMilli(w.Start).AddDate(0, -1, 0).UnixMilli()
	if month.Start != wantStart {
		t.Fatalf("month.Start=%d, want %d", month.Start, wantStart)
	}

	year := ComparisonWindow(w, ComparePreviousYear, Window{})
	wantStart = time.UnixMilli(w.Start).AddDate(-1, 0, 0).UnixMilli()
	if year.Start != wantStart {
		t.Fatalf("year.Start=%d, want %d", year.Start, wantStart)
	}

	custom := Window{Start: 1, End: 2}
	if got := ComparisonWindow(w, CompareCustom, custom); got != custom {
		t.Fatalf("custom mode mismatch: %+v", got)
	}
}
