package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbooth-services/common/qrcode"
)

func TestGenerateTicketPDF(t *testing.T) {
	png, err := qrcode.GeneratePNG("QR_0123456789ABCDEF0123456789ABCDEF", 200)
	require.NoError(t, err)

	start := time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC)
	out, err := GenerateTicketPDF(TicketPDFData{
		Credential:     "QR_0123456789ABCDEF0123456789ABCDEF",
		OrderID:        "5d1b0a4e-9a0f-4c57-8d6e-3b1f2a7c9e10",
		EventName:      "Café Sessions: Live at the Bürgerhaus",
		EventStart:     start,
		EventEnd:       start.Add(3 * time.Hour),
		Location:       "12 Harbour Road",
		Classification: "VIP",
		HolderName:     "Zoë Müller",
		ItemName:       "Festival tee",
		Price:          "$45.00",
		QRCodePngBytes: png,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestGenerateTicketPDFWithoutQRCode(t *testing.T) {
	out, err := GenerateTicketPDF(TicketPDFData{
		Credential:     "QR_ABC",
		EventName:      "Open Rehearsal",
		EventStart:     time.Now(),
		Classification: "General",
		HolderName:     "Sam",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
