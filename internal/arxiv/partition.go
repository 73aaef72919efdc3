package arxiv

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a calendar month in the corpus.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// ParseYearMonth parses "2024-01" (or "2024/01").
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "-/")
	if sep < 0 {
		return YearMonth{}, Errorf(KindValidation, "parse year-month", "invalid year-month %q (want YYYY-MM)", s)
	}
	year, err := strconv.Atoi(s[:sep])
	if err != nil || len(s[:sep]) != 4 {
		return YearMonth{}, Errorf(KindValidation, "parse year-month", "invalid year in %q", s)
	}
	month, err := strconv.Atoi(s[sep+1:])
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, Errorf(KindValidation, "parse year-month", "invalid month in %q", s)
	}
	return YearMonth{Year: year, Month: month}, nil
}

// YearMonthOf returns the month containing t.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Compare orders year-months chronologically.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year != other.Year:
		if ym.Year < other.Year {
			return -1
		}
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	}
	return 0
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }

// Bounds is the inclusive range of year-months the corpus covers.
type Bounds struct {
	First YearMonth
	Last  YearMonth
}

// FirstArxivMonth is the first month with arXiv submissions.
var FirstArxivMonth = YearMonth{Year: 1991, Month: 8}

// DefaultBounds covers the corpus from the first arXiv month up to now.
func DefaultBounds(now time.Time) Bounds {
	return Bounds{First: FirstArxivMonth, Last: YearMonthOf(now)}
}

// Contains reports whether ym is within the bounds.
func (b Bounds) Contains(ym YearMonth) bool {
	return !ym.Before(b.First) && !b.Last.Before(ym)
}

// PartitionKey identifies one remote shard.
type PartitionKey struct {
	Category string    `json:"category"`
	Period   YearMonth `json:"period"`
}

// NewPartitionKey is a convenience constructor.
func NewPartitionKey(category string, year, month int) PartitionKey {
	return PartitionKey{Category: category, Period: YearMonth{Year: year, Month: month}}
}

func (k PartitionKey) String() string {
	return k.Category + "/" + k.Period.String()
}

// Compare orders keys by category, then chronologically.
func (k PartitionKey) Compare(other PartitionKey) int {
	if c := strings.Compare(k.Category, other.Category); c != 0 {
		return c
	}
	return k.Period.Compare(other.Period)
}

// RemotePath is the shard's path inside the dataset repository.
func (k PartitionKey) RemotePath() string {
	return fmt.Sprintf("data/%s/%04d/%02d/00000000.parquet", k.Category, k.Period.Year, k.Period.Month)
}

// LocalPath is the stable on-disk location of anything keyed by this
// partition, relative to a cache root: YYYY/MM/<category>.<ext>.
// Dots in the category become underscores so the extension stays unambiguous.
func (k PartitionKey) LocalPath(ext string) string {
	safe := strings.ReplaceAll(k.Category, ".", "_")
	return filepath.Join(fmt.Sprintf("%04d", k.Period.Year), fmt.Sprintf("%02d", k.Period.Month), safe+ext)
}
