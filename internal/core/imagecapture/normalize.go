// Package imagecapture turns pasted or uploaded bytes into an image payload
// and tracks the capture widget's state.
package imagecapture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes = 5 << 20

var (
	ErrEmpty       = errors.New("image is empty")
	ErrTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupported = errors.New("unsupported image type")
	ErrCorrupt     = errors.New("image data is corrupt")
)

var accepted = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Payload is what gets stored with a use case.
type Payload struct {
	MIME    string `json:"mime"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Size    int    `json:"size"`
	DataURL string `json:"data_url"`
}

// Normalize checks raw and encodes it as a data URL. The type comes from the
// bytes, never from a file name. maxBytes <= 0 means DefaultMaxBytes.
func Normalize(raw []byte, maxBytes int) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, ErrEmpty
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(raw) > maxBytes {
		return Payload{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(raw), maxBytes)
	}

	mtype := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mtype.String(), accepted...) {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnsupported, mtype.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return Payload{
		MIME:    mtype.String(),
		Width:   cfg.Width,
		Height:  cfg.Height,
		Size:    len(raw),
		DataURL: "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(raw),
	}, nil
}
