package cache

import (
	"fmt"
	"time"
)

// FolderCacheBucket is the coarse time bucket used to key folder listings.
// Entries are implicitly fresh for one bucket and never explicitly
// invalidated on filesystem change.
const FolderCacheBucket = 5 * time.Minute

// FolderListKey keys a directory listing by path and time bucket.
func FolderListKey(path string, now time.Time) string {
	bucket := now.Unix() / int64(FolderCacheBucket.Seconds())
	return fmt.Sprintf("folders:%d:%s", bucket, path)
}

// SessionKey keys a login session by its opaque token.
func SessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// RateLimitKey keys a per-user request counter.
func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
