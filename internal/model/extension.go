package model

import "time"

// ExtensionPackage is the extension artifact loaded into the browser profile.
// It is created by the extension provisioner and read-only afterwards.
type ExtensionPackage struct {
	// ID is the extension identifier in the Chrome Web Store.
	ID string `json:"id"`

	// SourceURL is the update-service URL the package was fetched from.
	SourceURL string `json:"source_url"`

	// Path is the on-disk location of the package file.
	Path string `json:"path"`

	// FetchedAt is the modification time of the package file.
	// For a cached package this is the time of the earlier download.
	FetchedAt time.Time `json:"fetched_at"`

	// Checksum is the hex-encoded md5 of the package content.
	Checksum string `json:"checksum"`

	// Size is the package size in bytes.
	Size int64 `json:"size"`

	// Cached is true when the package was reused without a network request.
	Cached bool `json:"cached"`
}

// Age returns how old the package file is relative to now.
func (p *ExtensionPackage) Age(now time.Time) time.Duration {
	return now.Sub(p.FetchedAt)
}
