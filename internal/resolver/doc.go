// Package resolver turns free-text video descriptions into downloadable
// stock footage via keyword extraction and provider search.
package resolver
