// Package artifact writes diagnostic files into the work directory.
//
// Every file is written to a temporary sibling first and renamed into place,
// so a reader (or a run killed mid-write) never sees a truncated screenshot,
// DOM dump or extension package.
package artifact
