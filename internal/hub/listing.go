package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// nextLinkPattern extracts the rel="next" target from a Link header.
var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// treeURL is the tree listing URL for a directory in the repository.
func (c *Client) treeURL(dir string) string {
	return fmt.Sprintf("%s/api/datasets/%s/tree/%s/%s", c.baseURL, c.repo, url.PathEscape(c.revision), dir)
}

// listTree returns every entry directly under dir, following pagination.
func (c *Client) listTree(ctx context.Context, dir string) ([]treeEntry, error) {
	var all []treeEntry
	next := c.treeURL(dir)
	for next != "" {
		var page []treeEntry
		var link string
		err := c.withRetry(ctx, "hub.tree "+dir, func() error {
			resp, err := c.get(ctx, next, nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			page = nil
			if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
				return fmt.Errorf("decoding tree listing: %w", err)
			}
			link = resp.Header.Get("Link")
			return nil
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		next = ""
		if m := nextLinkPattern.FindStringSubmatch(link); m != nil {
			next = m[1]
		}
	}
	return all, nil
}

// listDirs returns the base names of the directories directly under dir.
func (c *Client) listDirs(ctx context.Context, dir string) ([]string, error) {
	entries, err := c.listTree(ctx, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type == "directory" {
			names = append(names, path.Base(e.Path))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListSubjects returns the category codes present in the dataset.
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	return c.listDirs(ctx, "data")
}

// ListYears returns the years available for a category.
func (c *Client) ListYears(ctx context.Context, category string) ([]int, error) {
	if err := c.taxonomy.Validate(category); err != nil {
		return nil, err
	}
	names, err := c.listDirs(ctx, "data/"+category)
	if err != nil {
		return nil, err
	}
	return parseInts(names), nil
}

// ListMonths returns the months available for a category and year.
func (c *Client) ListMonths(ctx context.Context, category string, year int) ([]arxiv.YearMonth, error) {
	if err := c.taxonomy.Validate(category); err != nil {
		return nil, err
	}
	names, err := c.listDirs(ctx, fmt.Sprintf("data/%s/%04d", category, year))
	if err != nil {
		return nil, err
	}
	months := make([]arxiv.YearMonth, 0, len(names))
	for _, m := range parseInts(names) {
		months = append(months, arxiv.YearMonth{Year: year, Month: m})
	}
	return months, nil
}

// FileInfo returns the size of a partition's parquet file without
// downloading it.
func (c *Client) FileInfo(ctx context.Context, key arxiv.PartitionKey) (*FileInfo, error) {
	if err := c.Validate(key); err != nil {
		return nil, err
	}
	dir := path.Dir(key.RemotePath())
	entries, err := c.listTree(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Type == "file" && strings.HasSuffix(e.Path, ".parquet") {
			return &FileInfo{Path: e.Path, Size: e.Size}, nil
		}
	}
	return nil, arxiv.Errorf(arxiv.KindNotFound, "hub.file_info", "no parquet file under %s", dir)
}

// parseInts keeps the numeric names, sorted ascending.
func parseInts(names []string) []int {
	out := make([]int, 0, len(names))
	for _, n := range names {
		v, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
