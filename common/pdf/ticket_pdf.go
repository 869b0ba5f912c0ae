package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TicketPDFData holds everything printed on one ticket.
type TicketPDFData struct {
	Credential     string
	OrderID        string
	EventName      string
	EventStart     time.Time
	EventEnd       time.Time
	Location       string
	Classification string
	HolderName     string
	ItemName       string
	Price          string
	QRCodePngBytes []byte
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// GenerateTicketPDF renders a single A4 ticket with its QR code on top.
func GenerateTicketPDF(data TicketPDFData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate UTF-8 input.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)

	// QR code, centred
	if len(data.QRCodePngBytes) > 0 {
		imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
		imgName := "qr_" + data.Credential
		pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(data.QRCodePngBytes))

		qrX := (210.0 - 100.0) / 2
		pdf.ImageOptions(imgName, qrX, pdf.GetY(), 100, 100, false, imgOpts, 0, "")
		pdf.Ln(102)
	}
	pdf.Ln(5)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	// Event name (left) and schedule (right)
	currentY := pdf.GetY()
	pdf.SetFont("Arial", "B", 20)
	pdf.SetXY(20, currentY)
	pdf.MultiCell(85, 9, tr(truncate(data.EventName, 40)), "", "L", false)

	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(115, currentY)
	pdf.CellFormat(75, 7, "When:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	pdf.SetX(115)
	pdf.CellFormat(75, 6, data.EventStart.Format("Mon, January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.SetX(115)
	schedule := data.EventStart.Format("3:04PM")
	if !data.EventEnd.IsZero() {
		schedule += " - " + data.EventEnd.Format("3:04PM")
	}
	pdf.CellFormat(75, 6, schedule, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// Holder (left) and location (right)
	currentY = pdf.GetY()
	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(20, currentY)
	pdf.CellFormat(85, 7, "Ticket holder:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.SetX(20)
	pdf.MultiCell(85, 8, tr(truncate(data.HolderName, 30)), "", "L", false)

	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(115, currentY)
	pdf.CellFormat(75, 7, "Location:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	pdf.SetX(115)
	pdf.MultiCell(75, 6, tr(truncate(data.Location, 60)), "", "L", false)
	pdf.Ln(4)

	row := func(label, value string) {
		pdf.SetFont("Arial", "", 15)
		pdf.SetX(20)
		pdf.CellFormat(45, 10, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 17)
		pdf.CellFormat(0, 10, tr(value), "", 1, "L", false, 0, "")
	}
	row("Ticket type:", data.Classification)
	if data.ItemName != "" {
		row("Includes:", data.ItemName)
	}
	if data.Price != "" {
		row("Price:", data.Price)
	}
	row("Order:", data.OrderID)
	pdf.Ln(6)

	pdf.SetFont("Arial", "I", 13)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 9, fmt.Sprintf("Credential: %s", data.Credential), "0", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 6, "Bring this ticket (PDF or screenshot) to the event.\nStaff will scan the QR code at the entrance.", "0", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}
