package arxiv

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewSelection_Canonicalizes(t *testing.T) {
	a := NewSelection(
		NewPartitionKey("cs.AI", 2024, 1),
		NewPartitionKey("cs.LG", 2024, 2),
	)
	b := NewSelection(
		NewPartitionKey("cs.LG", 2024, 2),
		NewPartitionKey("cs.AI", 2024, 1),
		NewPartitionKey(" cs.AI ", 2024, 1),
	)

	if a.Canonical() != b.Canonical() {
		t.Errorf("Canonical() differs: %q vs %q", a.Canonical(), b.Canonical())
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after dedup", b.Len())
	}
	if want := "cs.AI@2024-01,cs.LG@2024-02"; a.Canonical() != want {
		t.Errorf("Canonical() = %q, want %q", a.Canonical(), want)
	}
}

func TestNewSelection_ChronologicalMonths(t *testing.T) {
	sel := NewSelection(
		NewPartitionKey("cs.AI", 2024, 10),
		NewPartitionKey("cs.AI", 2023, 12),
		NewPartitionKey("cs.AI", 2024, 2),
	)
	months := sel.Months()
	want := []string{"2023-12", "2024-02", "2024-10"}
	if len(months) != len(want) {
		t.Fatalf("Months() len = %d, want %d", len(months), len(want))
	}
	for i, m := range months {
		if m.String() != want[i] {
			t.Errorf("Months()[%d] = %s, want %s", i, m, want[i])
		}
	}
}

func TestCross(t *testing.T) {
	sel := Cross([]string{"cs.LG", "cs.AI"}, []YearMonth{{2024, 2}, {2024, 1}})
	if sel.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", sel.Len())
	}
	if got := sel.Categories(); len(got) != 2 || got[0] != "cs.AI" || got[1] != "cs.LG" {
		t.Errorf("Categories() = %v", got)
	}
	if !sel.Contains(NewPartitionKey("cs.LG", 2024, 1)) {
		t.Error("Contains(cs.LG/2024-01) = false")
	}
	if sel.Contains(NewPartitionKey("cs.CV", 2024, 1)) {
		t.Error("Contains(cs.CV/2024-01) = true")
	}
}

func TestSelection_Validate(t *testing.T) {
	bounds := Bounds{First: FirstArxivMonth, Last: YearMonth{2024, 6}}
	tax := DefaultTaxonomy()

	tests := []struct {
		name    string
		sel     Selection
		wantErr bool
	}{
		{"valid", NewSelection(NewPartitionKey("cs.AI", 2024, 1)), false},
		{"empty", Selection{}, true},
		{"unknown archive", NewSelection(NewPartitionKey("zz.AI", 2024, 1)), true},
		{"future month", NewSelection(NewPartitionKey("cs.AI", 2024, 7)), true},
		{"before arxiv", NewSelection(NewPartitionKey("cs.AI", 1990, 1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate(tax, bounds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Validate() error kind = %s, want validation", KindOf(err))
			}
		})
	}
}

func TestSelection_JSONRoundTripCanonicalizes(t *testing.T) {
	var sel Selection
	input := `[{"category":"cs.LG","period":{"year":2024,"month":2}},{"category":"cs.AI","period":{"year":2024,"month":1}}]`
	if err := json.Unmarshal([]byte(input), &sel); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if sel.Canonical() != "cs.AI@2024-01,cs.LG@2024-02" {
		t.Errorf("Canonical() = %q", sel.Canonical())
	}
}

func TestMonthsOfYear(t *testing.T) {
	now := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	if got := MonthsOfYear(2025, now); len(got) != 3 {
		t.Errorf("current year: got %d months, want 3", len(got))
	}
	if got := MonthsOfYear(2024, now); len(got) != 12 {
		t.Errorf("past year: got %d months, want 12", len(got))
	}
	if got := MonthsOfYear(2026, now); got != nil {
		t.Errorf("future year: got %v, want nil", got)
	}
}

func TestFilter_Match(t *testing.T) {
	key := NewPartitionKey("cs.AI", 2024, 1)

	if !(Filter{}).Match(key) {
		t.Error("zero filter should match everything")
	}
	if !(Filter{Categories: []string{"cs.AI"}}).Match(key) {
		t.Error("category filter should match")
	}
	if (Filter{Months: []YearMonth{{2024, 2}}}).Match(key) {
		t.Error("month filter should not match")
	}
}
