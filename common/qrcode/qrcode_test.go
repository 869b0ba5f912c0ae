package qrcode

import (
	"bytes"
	"strings"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestGeneratePNG(t *testing.T) {
	png, err := GeneratePNG("QR_0123456789ABCDEF0123456789ABCDEF", 256)
	if err != nil {
		t.Fatalf("GeneratePNG: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("output is not a PNG")
	}
}

func TestGeneratePNGDefaultsSize(t *testing.T) {
	if _, err := GeneratePNG("QR_ABC", 0); err != nil {
		t.Fatalf("GeneratePNG with zero size: %v", err)
	}
}

func TestGenerateDataURI(t *testing.T) {
	uri, err := GenerateDataURI("QR_ABC", 128)
	if err != nil {
		t.Fatalf("GenerateDataURI: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,iVBOR") {
		t.Errorf("unexpected data URI prefix: %.40s", uri)
	}
}

func TestGeneratePNGRejectsOversizedContent(t *testing.T) {
	if _, err := GeneratePNG(strings.Repeat("X", 5000), 128); err == nil {
		t.Error("expected error for content beyond QR capacity")
	}
}
