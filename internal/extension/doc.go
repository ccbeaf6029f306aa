// Package extension obtains the browser extension package and unpacks it
// into a directory Chromium can load.
//
// The package is downloaded from the Chrome Web Store update service and kept
// in the work directory. A copy younger than the configured maximum age is
// reused without any network access: the update service rate limits repeated
// downloads, so the cache is part of the contract rather than an optimization.
//
// Unpack understands both CRX2 and CRX3 containers. The public key found in
// the header is written into the unpacked manifest so that Chromium assigns
// the unpacked extension the same ID as the store version.
package extension
