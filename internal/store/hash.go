package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ComputeFingerprint computes a deterministic hash over a workspace's file
// hashes keyed by path. Two workspaces with the same files and contents have
// the same fingerprint regardless of map iteration order.
func ComputeFingerprint(fileHashes map[string]string) string {
	paths := make([]string, 0, len(fileHashes))
	for p := range fileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s\x00%s\n", p, fileHashes[p])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
