// Package archive decodes the base64 ZIP bundles produced by the analysis
// service and extracts the rendered images they contain.
package archive

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Reason classifies a DecodeError.
type Reason int

const (
	// InvalidBase64 means the payload was not valid base64 text.
	InvalidBase64 Reason = iota + 1
	// InvalidArchive means the decoded bytes are not a readable ZIP, or an
	// entry could not be read.
	InvalidArchive
	// NoImagesFound means the archive was readable but held no image entries.
	NoImagesFound
)

func (r Reason) String() string {
	switch r {
	case InvalidBase64:
		return "invalid base64"
	case InvalidArchive:
		return "invalid archive"
	case NoImagesFound:
		return "no images found"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DecodeError reports why an archive payload could not be turned into images.
type DecodeError struct {
	Reason Reason
	Entry  string // set when a single entry failed
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "archive: " + e.Reason.String()
	if e.Entry != "" {
		msg += " (" + e.Entry + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is.
var (
	ErrInvalidBase64  = &DecodeError{Reason: InvalidBase64}
	ErrInvalidArchive = &DecodeError{Reason: InvalidArchive}
	ErrNoImagesFound  = &DecodeError{Reason: NoImagesFound}
)

// Handle is a decoded archive. Entry contents are read only when asked for.
type Handle struct {
	raw    []byte
	reader *zip.Reader
}

// Decode base64-decodes payload and opens the result as a ZIP archive.
// Whitespace inside the payload is ignored, and both padded and unpadded
// encodings are accepted.
func Decode(payload string) (*Handle, error) {
	raw, err := decodeBase64(payload)
	if err != nil {
		return nil, &DecodeError{Reason: InvalidBase64, Err: err}
	}
	return Open(raw)
}

// Open reads raw ZIP bytes without any base64 step.
func Open(raw []byte) (*Handle, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &DecodeError{Reason: InvalidArchive, Err: err}
	}
	// Some exporters write entries with zstd (method 93).
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return &Handle{raw: raw, reader: zr}, nil
}

func decodeBase64(payload string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if strings.HasSuffix(clean, "=") || len(clean)%4 == 0 {
		return base64.StdEncoding.DecodeString(clean)
	}
	return base64.RawStdEncoding.DecodeString(clean)
}

// Raw returns the decoded ZIP bytes.
func (h *Handle) Raw() []byte { return h.raw }

// Entries lists every entry name in archive order, directories included.
func (h *Handle) Entries() []string {
	names := make([]string, 0, len(h.reader.File))
	for _, f := range h.reader.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadEntry reads the named entry in full.
func (h *Handle) ReadEntry(name string) ([]byte, error) {
	for _, f := range h.reader.File {
		if f.Name == name {
			return readFile(f)
		}
	}
	return nil, &DecodeError{Reason: InvalidArchive, Entry: name, Err: fmt.Errorf("entry not found")}
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &DecodeError{Reason: InvalidArchive, Entry: f.Name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &DecodeError{Reason: InvalidArchive, Entry: f.Name, Err: err}
	}
	return data, nil
}
