package qrcode

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the pixel width used for emailed tickets.
const DefaultSize = 300

// GeneratePNG encodes text as a QR code PNG of size x size pixels.
// High error correction keeps codes scannable from scuffed phone screens
// and printouts.
func GeneratePNG(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	qr, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	pngBytes, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR to PNG: %w", err)
	}

	return pngBytes, nil
}

// GenerateDataURI returns "data:image/png;base64,..." for inline HTML.
func GenerateDataURI(text string, size int) (string, error) {
	pngBytes, err := GeneratePNG(text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes), nil
}
