package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ticketbooth-services/common/credential"
	"github.com/ticketbooth-services/common/email"
	"github.com/ticketbooth-services/common/logger"
	"github.com/ticketbooth-services/common/metrics"
	ticketpdf "github.com/ticketbooth-services/common/pdf"
	"github.com/ticketbooth-services/services/ticket-lambda/models"
	"github.com/ticketbooth-services/services/ticket-lambda/repository"
)

// Mailer delivers a composed confirmation.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, data email.OrderConfirmation) error
}

// ConfirmationSender builds the order confirmation from what was stored
// and mails it. Images that fail to render are skipped; the email still
// goes out.
type ConfirmationSender struct {
	repo    *repository.TicketRepository
	issuer  *credential.Issuer
	mailer  Mailer
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewConfirmationSender(
	repo *repository.TicketRepository,
	issuer *credential.Issuer,
	mailer Mailer,
	m *metrics.Metrics,
	log *logger.Logger,
) *ConfirmationSender {
	return &ConfirmationSender{
		repo:    repo,
		issuer:  issuer,
		mailer:  mailer,
		metrics: m,
		log:     log.With("component", "confirmation"),
	}
}

// Send mails the confirmation for orderID.
func (s *ConfirmationSender) Send(ctx context.Context, orderID string) error {
	detail, err := s.repo.GetOrderDetail(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.Confirmation(metrics.OutcomeNotFound)
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	if err != nil {
		s.metrics.Confirmation(metrics.OutcomeError)
		return err
	}

	msg := s.compose(ctx, detail)
	if err := s.mailer.SendOrderConfirmation(ctx, msg); err != nil {
		s.metrics.Confirmation(metrics.OutcomeError)
		return fmt.Errorf("send confirmation for order %s: %w", orderID, err)
	}

	s.metrics.Confirmation(metrics.OutcomeSuccess)
	s.log.WithContext(ctx).Info("order confirmation sent",
		"orderId", orderID,
		"tickets", len(detail.Tickets),
		"attachments", len(msg.Attachments))
	return nil
}

func (s *ConfirmationSender) compose(ctx context.Context, d *models.OrderDetail) email.OrderConfirmation {
	msg := email.OrderConfirmation{
		To:            d.Order.Purchaser.Email,
		PurchaserName: d.Order.Purchaser.FullName(),
		OrderID:       d.Order.ID,
		EventName:     d.Event.Name,
		EventWhen:     formatSchedule(d.Event),
		Location:      d.Event.Location,
		Subtotal:      money(d.Order.Pricing.Subtotal.StringFixed(2)),
		ServiceFee:    money(d.Order.Pricing.ServiceFee.StringFixed(2)),
		ProcessingFee: money(d.Order.Pricing.ProcessingFee.StringFixed(2)),
		Total:         money(d.Order.Pricing.Total.StringFixed(2)),
	}

	for _, t := range d.Tickets {
		msg.Tickets = append(msg.Tickets, email.TicketLine{
			HolderName:     t.HolderName,
			Classification: t.Classification,
			Credential:     t.Credential,
			ItemName:       t.ItemName,
		})

		png, err := s.issuer.Render(t.Credential)
		if err != nil {
			s.log.WithContext(ctx).Warn("qr render failed, skipping image",
				"orderId", d.Order.ID, "ticketId", t.ID, "error", err)
			continue
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename: fmt.Sprintf("qr-%s.png", t.Credential),
			Data:     png,
			MimeType: "image/png",
		})

		pdfBytes, err := ticketpdf.GenerateTicketPDF(ticketpdf.TicketPDFData{
			Credential:     t.Credential,
			OrderID:        d.Order.ID,
			EventName:      d.Event.Name,
			EventStart:     d.Event.StartAt,
			EventEnd:       d.Event.EndAt,
			Location:       d.Event.Location,
			Classification: t.Classification,
			HolderName:     t.HolderName,
			ItemName:       t.ItemName,
			Price:          money(t.Cost.StringFixed(2)),
			QRCodePngBytes: png,
		})
		if err != nil {
			s.log.WithContext(ctx).Warn("ticket pdf failed, skipping attachment",
				"orderId", d.Order.ID, "ticketId", t.ID, "error", err)
			continue
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename: fmt.Sprintf("ticket-%s.pdf", t.Credential),
			Data:     pdfBytes,
			MimeType: "application/pdf",
		})
	}
	return msg
}

func formatSchedule(e models.Event) string {
	when := e.StartAt.Format("Mon, January 2, 2006 3:04PM")
	if !e.EndAt.IsZero() {
		if e.EndAt.YearDay() == e.StartAt.YearDay() && e.EndAt.Year() == e.StartAt.Year() {
			when += " - " + e.EndAt.Format("3:04PM")
		} else {
			when += " - " + e.EndAt.Format("Mon, January 2, 2006 3:04PM")
		}
	}
	return when + " UTC"
}

func money(amount string) string {
	return "$" + amount
}

// ============================================================
// InlineNotifier - confirmation without a task queue
// ============================================================

// InlineNotifier sends the confirmation in the calling goroutine. It is
// used when no Redis is configured; the purchase path already calls it
// off the request goroutine.
type InlineNotifier struct {
	sender *ConfirmationSender
}

func NewInlineNotifier(sender *ConfirmationSender) *InlineNotifier {
	return &InlineNotifier{sender: sender}
}

func (n *InlineNotifier) OrderConfirmed(ctx context.Context, orderID string) error {
	return n.sender.Send(ctx, orderID)
}
