package storage

import (
	"path"
	"strings"
	"time"
)

// ArchiveKey lays out archived exports as
// <prefix>/<scope>/<yyyy>/<mm>/<yyyymmddThhmmss>-<id>.<ext> so a plain
// descending key sort lists the newest report first.
func ArchiveKey(prefix, scope, id, ext string, at time.Time) string {
	at = at.UTC()
	name := at.Format("20060102T150405") + "-" + id + "." + strings.TrimPrefix(ext, ".")
	return path.Join(strings.Trim(prefix, "/"), scope, at.Format("2006"), at.Format("01"), name)
}

// ArchivePrefix is the listing prefix for one scope.
func ArchivePrefix(prefix, scope string) string {
	return path.Join(strings.Trim(prefix, "/"), scope) + "/"
}
