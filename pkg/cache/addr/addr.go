// Package addr derives stable on-disk cache addresses from remote video
// references.
//
// A remote reference (URL string) is mapped to a fixed-length digest so that
// distinct remotes never collide on disk. The naive alternative of using the
// last path segment breaks as soon as two CDNs serve files with the same
// basename, so the digest is computed over the full canonical URL.
package addr

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DefaultExt is used when the remote reference carries no usable extension.
const DefaultExt = ".mp4"

// CacheKey is a fixed-length, collision-resistant digest of a remote
// reference. Same remote always yields the same key.
type CacheKey string

// KeyFor returns the cache key for a remote reference.
//
// The key is the hex-encoded SHA-256 of the raw reference string. The
// reference is treated as opaque: no normalization is applied, so callers
// must pass references in a canonical form if they want "equivalent" URLs
// to share an entry.
func KeyFor(remote string) CacheKey {
	sum := sha256.Sum256([]byte(remote))
	return CacheKey(hex.EncodeToString(sum[:]))
}

// ExtFor returns the file extension for a remote reference, including the
// leading dot. Falls back to DefaultExt when the URL path has none or the
// reference does not parse.
func ExtFor(remote string) string {
	u, err := url.Parse(remote)
	if err != nil {
		return DefaultExt
	}
	ext := path.Ext(u.Path)
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		return DefaultExt
	}
	return ext
}

// PathFor returns the absolute final path for a key inside the cache root.
func PathFor(root string, key CacheKey, ext string) string {
	if ext == "" {
		ext = DefaultExt
	}
	return filepath.Join(root, string(key)+ext)
}

// LocalPathFor is the common composition of KeyFor, ExtFor and PathFor.
func LocalPathFor(root, remote string) string {
	return PathFor(root, KeyFor(remote), ExtFor(remote))
}
