package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"

	"github.com/domodwyer/mailyak/v3"

	"github.com/ticketbooth-services/common/logger"
)

// ============================================================
// CONFIGURATION & SERVICE
// ============================================================

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Service sends transactional mail. Without SMTP credentials it runs in
// dev mode and only logs what it would have sent.
type Service struct {
	config  Config
	devMode bool
	log     *logger.Logger
}

func NewService(config Config, log *logger.Logger) *Service {
	return &Service{
		config:  config,
		devMode: config.Username == "" || config.Password == "",
		log:     log.With("component", "email"),
	}
}

// DevMode reports whether messages are logged instead of sent.
func (s *Service) DevMode() bool {
	return s.devMode
}

// ============================================================
// DATA STRUCTURES
// ============================================================

type Attachment struct {
	Filename string
	Data     []byte
	MimeType string
}

// TicketLine is one ticket listed in a confirmation.
type TicketLine struct {
	HolderName     string
	Classification string
	Credential     string
	ItemName       string
}

// OrderConfirmation is the content of the post-purchase email. Amounts
// are preformatted from the persisted order.
type OrderConfirmation struct {
	To            string
	PurchaserName string
	OrderID       string
	EventName     string
	EventWhen     string
	Location      string
	Tickets       []TicketLine
	Subtotal      string
	ServiceFee    string
	ProcessingFee string
	Total         string
	Attachments   []Attachment
}

// ============================================================
// TEMPLATES
// ============================================================

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html><body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#f5f5f5;">
<table width="100%" border="0" cellspacing="0" cellpadding="0" bgcolor="#f5f5f5"><tr><td align="center" style="padding:40px 0;">
<table width="600" border="0" cellspacing="0" cellpadding="0" bgcolor="#ffffff" style="border-radius:16px;overflow:hidden;">
<tr><td height="8" bgcolor="#1E6FD9" style="line-height:8px;font-size:8px;">&nbsp;</td></tr>
<tr><td style="padding:35px 40px 10px 40px;"><h1 style="margin:0;color:#1E6FD9;font-size:24px;">TICKETBOOTH</h1></td></tr>
<tr><td style="padding:10px 40px 40px 40px;">
<p style="font-size:18px;color:#666666;margin:0 0 10px 0;">Order confirmed</p>
<h2 style="font-size:30px;color:#000000;margin:0 0 20px 0;">{{.EventName}}</h2>
<p>Hello <strong>{{.PurchaserName}}</strong>, thanks for your order. Your tickets are attached.</p>
<table width="100%" border="0" cellpadding="12" bgcolor="#fafafa" style="margin-bottom:20px;border-left:4px solid #1E6FD9;">
<tr><td><small style="color:#999999;">ORDER</small><br/><strong>{{.OrderID}}</strong></td></tr>
<tr><td><small style="color:#999999;">WHEN</small><br/><strong>{{.EventWhen}}</strong></td></tr>
{{if .Location}}<tr><td><small style="color:#999999;">WHERE</small><br/><strong>{{.Location}}</strong></td></tr>{{end}}
</table>
<table width="100%" border="0" cellpadding="8" style="margin-bottom:20px;border-collapse:collapse;">
<tr style="background:#eef3fb;"><th align="left">Holder</th><th align="left">Type</th><th align="left">Credential</th></tr>
{{range .Tickets}}<tr><td>{{.HolderName}}</td><td>{{.Classification}}{{if .ItemName}} (incl. {{.ItemName}}){{end}}</td><td style="font-family:monospace;">{{.Credential}}</td></tr>
{{end}}</table>
<table width="100%" border="0" cellpadding="6">
<tr><td>Subtotal</td><td align="right">{{.Subtotal}}</td></tr>
<tr><td>Service fee</td><td align="right">{{.ServiceFee}}</td></tr>
<tr><td>Processing fee</td><td align="right">{{.ProcessingFee}}</td></tr>
<tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
</table>
<p style="margin-top:25px;color:#666666;font-size:13px;">Show the QR code on each ticket at the entrance.</p>
</td></tr>
<tr><td align="center" bgcolor="#2c2c2c" style="padding:20px;color:#999999;font-size:12px;">Ticketbooth</td></tr>
</table></td></tr></table></body></html>`))

// RenderOrderConfirmation renders the HTML body.
func RenderOrderConfirmation(data OrderConfirmation) (string, error) {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render order confirmation: %w", err)
	}
	return buf.String(), nil
}

// ============================================================
// SENDING ENGINE
// ============================================================

// Compose builds the MIME message for an order confirmation.
func (s *Service) Compose(data OrderConfirmation) (*mailyak.MailYak, error) {
	html, err := RenderOrderConfirmation(data)
	if err != nil {
		return nil, err
	}

	addr := s.config.Host + ":" + strconv.Itoa(s.config.Port)
	var auth smtp.Auth
	if !s.devMode {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	mail := mailyak.New(addr, auth)
	mail.To(data.To)
	mail.From(s.config.From)
	mail.FromName(s.config.FromName)
	mail.Subject(fmt.Sprintf("Your tickets for %s (order %s)", data.EventName, shortID(data.OrderID)))
	mail.HTML().Set(html)
	mail.Plain().Set(fmt.Sprintf("Order %s for %s is confirmed. %d ticket(s) attached. Total %s.",
		data.OrderID, data.EventName, len(data.Tickets), data.Total))

	for _, att := range data.Attachments {
		mail.AttachWithMimeType(att.Filename, bytes.NewReader(att.Data), att.MimeType)
	}
	return mail, nil
}

// SendOrderConfirmation hands the confirmation to SMTP.
func (s *Service) SendOrderConfirmation(ctx context.Context, data OrderConfirmation) error {
	mail, err := s.Compose(data)
	if err != nil {
		return err
	}

	log := s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":    data.OrderID,
		"to":          data.To,
		"attachments": len(data.Attachments),
	})
	if s.devMode {
		log.Info("dev mode: order confirmation not sent")
		return nil
	}

	if err := mail.Send(); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	log.Info("order confirmation sent")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
