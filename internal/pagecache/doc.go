// Package pagecache turns a finished request/response pair into a full-page
// cache file. It decides whether a response may be cached (GET only, optional
// action allow-list, enabled switch with a debug/force override), derives a
// filesystem-safe key from the request path and query, picks the file
// extension from the path or the response content type, optionally minifies
// or transforms the body, and prefixes it with a
// <!--cachetime:<unix>;ext:<ext>--> header before handing it to cache.Store.
//
// The package is host-agnostic: Input carries plain strings, so the Fiber
// middleware in internal/server is only one possible caller. Serving cached
// files and honoring cachetime is left to the front web server.
package pagecache
