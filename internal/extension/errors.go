package extension

import "errors"

var (
	// ErrDownload is returned when the package cannot be fetched or the body is unusable.
	ErrDownload = errors.New("extension download failed")

	// ErrInvalidPackage is returned when a file is neither a CRX container nor a zip archive.
	ErrInvalidPackage = errors.New("invalid extension package")

	// ErrUnsupportedVersion is returned for CRX container versions other than 2 and 3.
	ErrUnsupportedVersion = errors.New("unsupported CRX version")

	// ErrMissingManifest is returned when the payload has no manifest.json.
	ErrMissingManifest = errors.New("extension manifest not found")
)
