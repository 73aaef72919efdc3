package main

import "github.com/lmmx/arxiv-explorer/internal/arxiv"

// Exit codes. Failures classified by kind get their own code so scripts
// can tell a bad request from a down model.
const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error
	ExitConfigError  = 2 // Configuration error (unreadable config, bad paths)
	ExitValidation   = 3 // Invalid selection, k or topic count
	ExitNotFound     = 4 // Partition or paper does not exist
	ExitNetwork      = 5 // Hub unreachable after retries
	ExitModelError   = 6 // Embedding or projection backend failure
	ExitCorruptCache = 7 // Local cache file unreadable and not recoverable
	ExitCanceled     = 130
)

// exitCodeFor maps an error's kind to an exit code.
func exitCodeFor(err error) int {
	switch arxiv.KindOf(err) {
	case "":
		return ExitSuccess
	case arxiv.KindValidation:
		return ExitValidation
	case arxiv.KindNotFound:
		return ExitNotFound
	case arxiv.KindTransientNetwork:
		return ExitNetwork
	case arxiv.KindModel:
		return ExitModelError
	case arxiv.KindCorruptCache:
		return ExitCorruptCache
	case arxiv.KindCanceled:
		return ExitCanceled
	}
	return ExitError
}
