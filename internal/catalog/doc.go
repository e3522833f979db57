// Package catalog is the typed API of the video shopping service: uploads,
// the objects detected in them and the products matched to each object.
// Reads are cacheable per class; results served from a stale cache entry
// keep their Stale flag so callers can badge them.
package catalog
