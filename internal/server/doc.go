// Package server hosts the Fiber HTTP service that fronts the origin site.
// It attaches recover and request-id middleware, the page-cache middleware
// that hands every finished response to pagecache.Writer, and mounts the
// configured routes (under the site BasePath) so each request carries the
// action name used by the cache allow-list. Keep exports narrow and accept
// explicit dependencies; proxy and routes build on top of this package.
package server
