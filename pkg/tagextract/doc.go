// Package tagextract splits an arbitrarily chunked text stream into a
// content stream and a tags stream, tolerating tags broken across chunk
// boundaries at any byte position.
package tagextract
