package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/parquet-go/parquet-go"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// RowCount reads a partition's row count from its parquet footer using HTTP
// range requests, transferring a few kilobytes instead of the whole file.
func (c *Client) RowCount(ctx context.Context, key arxiv.PartitionKey) (int64, error) {
	info, err := c.FileInfo(ctx, key)
	if err != nil {
		return 0, err
	}

	r := &rangeReader{ctx: ctx, client: c, url: c.resolveURL(info.Path)}
	f, err := parquet.OpenFile(r, info.Size,
		parquet.SkipPageIndex(true),
		parquet.SkipBloomFilters(true),
	)
	if err != nil {
		return 0, fmt.Errorf("reading parquet footer for %s: %w", key, err)
	}
	return f.NumRows(), nil
}

// rangeReader adapts HTTP range requests to io.ReaderAt.
type rangeReader struct {
	ctx    context.Context
	client *Client
	url    string
}

func (r *rangeReader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	var n int
	err := r.client.withRetry(r.ctx, "hub.range", func() error {
		resp, err := r.client.get(r.ctx, r.url, header)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusPartialContent {
			return fmt.Errorf("range request not supported (HTTP %d)", resp.StatusCode)
		}
		n, err = io.ReadFull(resp.Body, p)
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	})
	return n, err
}
