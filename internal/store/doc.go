// Package store persists crawled pages and the page index.
//
// Pages are written to <dir>/NNN.html, where NNN is the zero-padded page
// sequence number. Each page file is written to a temporary file and renamed
// into place, so a reader never sees a partial page. After the page file
// exists, a "<seq> <url>" line is appended to the page index.
package store
