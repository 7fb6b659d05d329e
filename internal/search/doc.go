// Package search is the read-only code search capability granted to the
// review stage. Every operation is confined to a root directory; dot paths
// and blacklisted build artifacts, archives and media files are never
// visited.
//
// Patterns are shell globs in which "*" also matches "/", compared
// case-insensitively. A pattern without "*" is treated as a substring.
package search
