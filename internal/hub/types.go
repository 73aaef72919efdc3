package hub

import "github.com/lmmx/arxiv-explorer/internal/arxiv"

// Download describes a partition written to local disk.
type Download struct {
	Key      arxiv.PartitionKey
	Path     string
	Size     int64
	Revision string // commit the file was served from, if reported
}

// FileInfo describes a remote partition file without downloading it.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// treeEntry is one item from the repository tree API.
type treeEntry struct {
	Type string `json:"type"` // "file" or "directory"
	Path string `json:"path"`
	Size int64  `json:"size"`
}
