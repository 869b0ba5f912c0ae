// Package credential issues the scannable codes printed on tickets.
package credential

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ticketbooth-services/common/qrcode"
)

// Prefix marks a value as a ticket credential when scanned.
const Prefix = "QR_"

var pattern = regexp.MustCompile(`^QR_[0-9A-F]{32}$`)

// Issuer generates credentials and renders them as QR images. Codes are
// 122 random bits; storage keeps a UNIQUE index on them as well.
type Issuer struct {
	qrSize int
	random func() uuid.UUID
}

// NewIssuer returns an issuer that renders images of qrSize pixels.
func NewIssuer(qrSize int) *Issuer {
	if qrSize <= 0 {
		qrSize = qrcode.DefaultSize
	}
	return &Issuer{qrSize: qrSize, random: uuid.New}
}

// Issue returns a fresh credential.
func (i *Issuer) Issue() string {
	id := i.random()
	return Prefix + strings.ToUpper(hex.EncodeToString(id[:]))
}

// Render encodes code as a PNG.
func (i *Issuer) Render(code string) ([]byte, error) {
	return qrcode.GeneratePNG(code, i.qrSize)
}

// RenderDataURI encodes code as an inline PNG data URI.
func (i *Issuer) RenderDataURI(code string) (string, error) {
	return qrcode.GenerateDataURI(code, i.qrSize)
}

// Valid reports whether s has the shape of an issued credential.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Normalize trims whitespace and upper-cases scanner input.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
