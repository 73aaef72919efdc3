package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/diskcache"
)

// SubjectLister lists the category codes the dataset offers.
type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]string, error)
}

// LoadSubjects returns the taxonomy stored at path, listing subjects from
// the hub and saving them when the file does not exist yet or refresh is
// set. A corrupt file is rebuilt the same way.
func LoadSubjects(ctx context.Context, path string, lister SubjectLister, refresh bool) (*arxiv.Taxonomy, error) {
	if !refresh {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var codes map[string]string
			if json.Unmarshal(data, &codes) == nil && len(codes) > 0 {
				list := make([]string, 0, len(codes))
				for code := range codes {
					list = append(list, code)
				}
				return arxiv.NewTaxonomy(list), nil
			}
			// Unreadable or empty: fall through and rebuild it.
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading subject codes: %w", err)
		}
	}

	subjects, err := lister.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	codes := make(map[string]string, len(subjects))
	for _, s := range subjects {
		codes[s] = s
	}
	err = diskcache.WriteFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(codes)
	})
	if err != nil {
		return nil, fmt.Errorf("saving subject codes: %w", err)
	}
	return arxiv.NewTaxonomy(subjects), nil
}
