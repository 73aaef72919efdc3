package arxiv

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Selection is a canonical set of partitions identifying a corpus. The zero
// value is the empty selection. Keys are always kept sorted by category,
// then chronologically, with duplicates removed, so two selections naming
// the same partitions in any order are identical.
type Selection struct {
	keys []PartitionKey
}

// NewSelection builds a canonical selection from keys.
func NewSelection(keys ...PartitionKey) Selection {
	out := make([]PartitionKey, 0, len(keys))
	for _, k := range keys {
		k.Category = strings.TrimSpace(k.Category)
		out = append(out, k)
	}
	slices.SortFunc(out, PartitionKey.Compare)
	out = slices.CompactFunc(out, func(a, b PartitionKey) bool { return a.Compare(b) == 0 })
	return Selection{keys: out}
}

// Cross selects every category in every month.
func Cross(categories []string, months []YearMonth) Selection {
	keys := make([]PartitionKey, 0, len(categories)*len(months))
	for _, c := range categories {
		for _, m := range months {
			keys = append(keys, PartitionKey{Category: c, Period: m})
		}
	}
	return NewSelection(keys...)
}

// MonthsOfYear returns the months to process for a year: all twelve for past
// years, January through the current month for the current year, and none
// for future years.
func MonthsOfYear(year int, now time.Time) []YearMonth {
	last := 12
	switch cur := YearMonthOf(now); {
	case year > cur.Year:
		return nil
	case year == cur.Year:
		last = cur.Month
	}
	out := make([]YearMonth, 0, last)
	for m := 1; m <= last; m++ {
		out = append(out, YearMonth{Year: year, Month: m})
	}
	return out
}

// Keys returns a copy of the canonical partition keys.
func (s Selection) Keys() []PartitionKey { return slices.Clone(s.keys) }

// Len returns the number of partitions selected.
func (s Selection) Len() int { return len(s.keys) }

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return len(s.keys) == 0 }

// Contains reports whether key is part of the selection.
func (s Selection) Contains(key PartitionKey) bool {
	_, found := slices.BinarySearchFunc(s.keys, key, PartitionKey.Compare)
	return found
}

// Categories returns the distinct categories, sorted.
func (s Selection) Categories() []string {
	var out []string
	for _, k := range s.keys {
		if len(out) == 0 || out[len(out)-1] != k.Category {
			out = append(out, k.Category)
		}
	}
	return out
}

// Months returns the distinct months, sorted chronologically.
func (s Selection) Months() []YearMonth {
	out := make([]YearMonth, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.Period)
	}
	slices.SortFunc(out, YearMonth.Compare)
	return slices.Compact(out)
}

// Validate rejects empty selections, unknown categories, and months outside
// the corpus bounds.
func (s Selection) Validate(tax *Taxonomy, bounds Bounds) error {
	if s.IsEmpty() {
		return Errorf(KindValidation, "validate selection", "selection is empty")
	}
	for _, k := range s.keys {
		if err := tax.Validate(k.Category); err != nil {
			return err
		}
		if !bounds.Contains(k.Period) {
			return Errorf(KindValidation, "validate selection", "%s is outside the corpus range %s..%s",
				k.Period, bounds.First, bounds.Last)
		}
	}
	return nil
}

// Canonical is the selection's only identity string, e.g.
// "cs.AI@2024-01,cs.LG@2024-02". Cache keys are derived from it.
func (s Selection) Canonical() string {
	parts := make([]string, len(s.keys))
	for i, k := range s.keys {
		parts[i] = k.Category + "@" + k.Period.String()
	}
	return strings.Join(parts, ",")
}

func (s Selection) String() string { return s.Canonical() }

// MarshalJSON encodes the canonical key list.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s.keys == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.keys)
}

// UnmarshalJSON decodes a key list and canonicalizes it.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var keys []PartitionKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*s = NewSelection(keys...)
	return nil
}

// Filter narrows an already-loaded corpus. Empty fields match everything.
type Filter struct {
	Categories []string    `json:"categories,omitempty"`
	Months     []YearMonth `json:"months,omitempty"`
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool { return len(f.Categories) == 0 && len(f.Months) == 0 }

// Match reports whether a paper from partition key passes the filter.
func (f Filter) Match(key PartitionKey) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, key.Category) {
		return false
	}
	if len(f.Months) > 0 && !slices.Contains(f.Months, key.Period) {
		return false
	}
	return true
}
