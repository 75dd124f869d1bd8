package archive

import (
	"encoding/base64"
	"iter"
	"strings"
)

// ImageMIMEType is the type every extracted image is tagged with. JPEG
// entries are tagged the same way; browsers sniff the real format.
const ImageMIMEType = "image/png"

// ImageAsset is one displayable image taken from an archive.
type ImageAsset struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Payload  string `json:"payload"` // base64 of the entry bytes
}

// DataURI renders the asset as a data: URI.
func (a ImageAsset) DataURI() string {
	return "data:" + a.MIMEType + ";base64," + a.Payload
}

// Bytes decodes the payload back into the entry's raw bytes.
func (a ImageAsset) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Payload)
}

// IsImage reports whether an entry name is selected for extraction.
// Matching is case-sensitive.
func IsImage(name string) bool {
	return strings.HasSuffix(name, ".png") || strings.HasSuffix(name, ".jpg")
}

// Images yields the image entries of h in archive order. Each entry is read
// only when the consumer asks for it. Iteration stops after the first read
// error. The sequence can be ranged over more than once.
func Images(h *Handle) iter.Seq2[ImageAsset, error] {
	return func(yield func(ImageAsset, error) bool) {
		for _, f := range h.reader.File {
			if f.FileInfo().IsDir() || !IsImage(f.Name) {
				continue
			}
			data, err := readFile(f)
			if err != nil {
				yield(ImageAsset{}, err)
				return
			}
			asset := ImageAsset{
				Name:     f.Name,
				MIMEType: ImageMIMEType,
				Payload:  base64.StdEncoding.EncodeToString(data),
			}
			if !yield(asset, nil) {
				return
			}
		}
	}
}

// ExtractImages collects every image in h. An archive without images fails
// with NoImagesFound.
func ExtractImages(h *Handle) ([]ImageAsset, error) {
	var assets []ImageAsset
	for asset, err := range Images(h) {
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return nil, &DecodeError{Reason: NoImagesFound}
	}
	return assets, nil
}
