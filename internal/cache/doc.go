// Package cache owns the on-disk layout of the page cache: every entry is a
// single file CacheDirectory/<key>.<ext>. Writes go through a temp file and a
// rename so a reader never observes a half-written page; writers of the same
// entry are serialized by a per-locator lock. The package knows nothing about
// requests or payload headers, pagecache builds the bytes and hands them over.
package cache
