package extension

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"google.golang.org/protobuf/encoding/protowire"
)

// crxMagic starts every CRX container.
const crxMagic = "Cr24"

// Field numbers of the CRX3 CrxFileHeader and SignedData messages.
const (
	fieldSHA256WithRSA   protowire.Number = 2
	fieldSHA256WithECDSA protowire.Number = 3
	fieldSignedHeader    protowire.Number = 10000
	fieldProofPublicKey  protowire.Number = 1
	fieldSignedCrxID     protowire.Number = 1
)

// Header is the decoded CRX container header.
type Header struct {
	// Version is 2 or 3, or 0 for a bare zip archive.
	Version int

	// PublicKey is the DER-encoded key the extension ID is derived from.
	PublicKey []byte

	// ID is the extension ID declared by the header, empty if unknown.
	ID string

	// PayloadOffset is where the zip archive starts.
	PayloadOffset int
}

// ParseHeader decodes the container header of data.
// A bare zip archive is accepted and reported with Version 0.
func ParseHeader(data []byte) (*Header, error) {
	if !bytes.HasPrefix(data, []byte(crxMagic)) {
		if isZip(data) {
			return &Header{}, nil
		}
		return nil, fmt.Errorf("%w: missing %q magic", ErrInvalidPackage, crxMagic)
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidPackage)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	switch version {
	case 2:
		return parseCRX2(data)
	case 3:
		return parseCRX3(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}

// parseCRX2 reads "Cr24" | version | key length | signature length | key | signature.
func parseCRX2(data []byte) (*Header, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("%w: truncated CRX2 header", ErrInvalidPackage)
	}
	keyLen := int(binary.LittleEndian.Uint32(data[8:12]))
	sigLen := int(binary.LittleEndian.Uint32(data[12:16]))
	offset := 16 + keyLen + sigLen
	if keyLen < 0 || sigLen < 0 || offset > len(data) {
		return nil, fmt.Errorf("%w: CRX2 header exceeds file size", ErrInvalidPackage)
	}
	key := data[16 : 16+keyLen]
	return &Header{
		Version:       2,
		PublicKey:     key,
		ID:            ExtensionID(key),
		PayloadOffset: offset,
	}, nil
}

// parseCRX3 reads "Cr24" | version | header length | CrxFileHeader protobuf.
func parseCRX3(data []byte) (*Header, error) {
	headerLen := int(binary.LittleEndian.Uint32(data[8:12]))
	offset := 12 + headerLen
	if headerLen < 0 || offset > len(data) {
		return nil, fmt.Errorf("%w: CRX3 header exceeds file size", ErrInvalidPackage)
	}

	var keys [][]byte
	var crxID []byte
	b := data[12:offset]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.BytesType && (num == fieldSHA256WithRSA || num == fieldSHA256WithECDSA || num == fieldSignedHeader) {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldSignedHeader {
				crxID = firstBytesField(v, fieldSignedCrxID)
			} else if key := firstBytesField(v, fieldProofPublicKey); key != nil {
				keys = append(keys, key)
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, protowire.ParseError(n))
		}
		b = b[n:]
	}

	h := &Header{Version: 3, PayloadOffset: offset}
	if len(crxID) > 0 {
		h.ID = encodeID(crxID)
	}
	for _, key := range keys {
		if h.ID == "" || ExtensionID(key) == h.ID {
			h.PublicKey = key
			h.ID = ExtensionID(key)
			break
		}
	}
	return h, nil
}

// firstBytesField returns the first length-delimited field num of msg.
func firstBytesField(msg []byte, num protowire.Number) []byte {
	for len(msg) > 0 {
		n, typ, l := protowire.ConsumeTag(msg)
		if l < 0 {
			return nil
		}
		msg = msg[l:]
		if n == num && typ == protowire.BytesType {
			v, l := protowire.ConsumeBytes(msg)
			if l < 0 {
				return nil
			}
			return v
		}
		l = protowire.ConsumeFieldValue(n, typ, msg)
		if l < 0 {
			return nil
		}
		msg = msg[l:]
	}
	return nil
}

// ExtensionID derives the Chrome extension ID from a public key:
// the first 16 bytes of its SHA-256, hex digits mapped onto 'a'..'p'.
func ExtensionID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return encodeID(sum[:16])
}

func encodeID(raw []byte) string {
	hexID := []byte(hex.EncodeToString(raw))
	for i, c := range hexID {
		if c >= 'a' {
			hexID[i] = c - 'a' + 'k'
		} else {
			hexID[i] = c - '0' + 'a'
		}
	}
	return string(hexID)
}

// isZip reports whether data is a zip archive, including zip-based subtypes.
func isZip(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("application/zip") {
			return true
		}
	}
	return false
}

// Validate checks that data is a usable extension package.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidPackage)
	}
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if !isZip(data[h.PayloadOffset:]) {
		return fmt.Errorf("%w: payload is not a zip archive", ErrInvalidPackage)
	}
	return nil
}

// Unpacked describes an extension extracted to disk.
type Unpacked struct {
	// Dir is the directory passed to --load-extension.
	Dir string

	// ID is the extension ID Chromium will assign, empty without a public key.
	ID string

	// Name and Version come from the manifest.
	Name    string
	Version string

	// Files is the number of extracted files.
	Files int
}

// Unpack extracts the package at pkgPath into destDir, replacing any earlier
// content, and writes the header public key into the manifest "key" field.
func Unpack(pkgPath, destDir string) (*Unpacked, error) {
	data, err := os.ReadFile(pkgPath) //nolint:gosec // package path comes from the work directory
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	payload := data[h.PayloadOffset:]
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	if err := os.RemoveAll(destDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", destDir, err)
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	files := 0
	cleanDest := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, f := range zr.File {
		destPath := filepath.Join(destDir, f.Name) //nolint:gosec // checked against zip slip below
		if !strings.HasPrefix(destPath, cleanDest) {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0750); err != nil {
				return nil, err
			}
			continue
		}
		if err := extractFile(f, destPath); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		files++
	}

	u := &Unpacked{Dir: destDir, ID: h.ID, Files: files}
	if err := u.patchManifest(h.PublicKey); err != nil {
		return nil, err
	}
	return u, nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck // read-only

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // checked by caller
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil { //nolint:gosec // package size is bounded by the download
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// patchManifest fills Name and Version and injects the public key.
func (u *Unpacked) patchManifest(publicKey []byte) error {
	path := filepath.Join(u.Dir, "manifest.json")
	raw, err := os.ReadFile(path) //nolint:gosec // inside the unpack directory
	if err != nil {
		if os.IsNotExist(err) {
			return ErrMissingManifest
		}
		return err
	}

	// Manifests may start with a UTF-8 BOM.
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var manifest map[string]any
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("%w: manifest.json: %v", ErrInvalidPackage, err)
	}
	u.Name, _ = manifest["name"].(string)
	u.Version, _ = manifest["version"].(string)

	if len(publicKey) == 0 {
		return nil
	}
	if _, ok := manifest["key"]; ok {
		return nil
	}
	manifest["key"] = base64.StdEncoding.EncodeToString(publicKey)

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}
