package arxiv

import (
	"path/filepath"
	"testing"
)

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		input   string
		want    YearMonth
		wantErr bool
	}{
		{"2024-01", YearMonth{2024, 1}, false},
		{"2024/12", YearMonth{2024, 12}, false},
		{" 1991-08 ", YearMonth{1991, 8}, false},
		{"2024-13", YearMonth{}, true},
		{"24-01", YearMonth{}, true},
		{"202401", YearMonth{}, true},
		{"", YearMonth{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseYearMonth(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseYearMonth(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseYearMonth(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPartitionKey_Paths(t *testing.T) {
	key := NewPartitionKey("cs.AI", 2024, 3)

	if got, want := key.RemotePath(), "data/cs.AI/2024/03/00000000.parquet"; got != want {
		t.Errorf("RemotePath() = %q, want %q", got, want)
	}
	if got, want := key.LocalPath(".parquet"), filepath.Join("2024", "03", "cs_AI.parquet"); got != want {
		t.Errorf("LocalPath() = %q, want %q", got, want)
	}
	if got := key.String(); got != "cs.AI/2024-03" {
		t.Errorf("String() = %q", got)
	}
}

func TestTaxonomy(t *testing.T) {
	def := DefaultTaxonomy()
	for _, code := range []string{"cs.AI", "hep-th", "astro-ph.CO", "q-bio.NC"} {
		if !def.Contains(code) {
			t.Errorf("default taxonomy rejects %q", code)
		}
	}
	for _, code := range []string{"", "CS.AI", "foo.BAR", "cs..AI", "cs.AI;"} {
		if def.Contains(code) {
			t.Errorf("default taxonomy accepts %q", code)
		}
	}

	exact := NewTaxonomy([]string{"cs.AI", "cs.LG"})
	if exact.Contains("cs.CV") {
		t.Error("exact taxonomy accepts unlisted code")
	}
	if got := exact.Codes(); len(got) != 2 || got[0] != "cs.AI" {
		t.Errorf("Codes() = %v", got)
	}
}
