package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/wneessen/go-mail"

	"ticketshop/entity"
)

var ticketBody = template.Must(template.New("ticket").Parse(`<div style="font-family: Arial, sans-serif;">
  <h2 style="color:#D4AF37">Regal Star Gym - {{.Event}}</h2>
  <p>Hi {{.Ticket.Name}},</p>
  <p>Thanks for your purchase. Your ticket ID is <strong>{{.Ticket.TicketID}}</strong>.</p>
  <p>Please find your ticket attached as a PDF.</p>
</div>`))

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

type SMTP struct {
	client     *mail.Client
	from       string
	adminEmail string
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return &SMTP{
		client:     client,
		from:       cfg.From,
		adminEmail: cfg.AdminEmail,
	}, nil
}

func (s *SMTP) SendTicket(ctx context.Context, ticket entity.Ticket, pdf []byte) error {
	msg, err := s.newMessage(ticket.Email, TicketSubject(ticket))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := ticketBody.Execute(&body, struct {
		Event  string
		Ticket entity.Ticket
	}{eventName, ticket}); err != nil {
		return fmt.Errorf("rendering email body: %w", err)
	}
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	err = msg.AttachReader(
		TicketAttachmentName(ticket),
		bytes.NewReader(pdf),
		mail.WithFileContentType(mail.ContentType("application/pdf")),
	)
	if err != nil {
		return fmt.Errorf("attaching ticket pdf: %w", err)
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending ticket email: %w", err)
	}

	log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).Info("Ticket email sent")

	return nil
}

func (s *SMTP) NotifyAdmin(ctx context.Context, subject, body string) error {
	if s.adminEmail == "" {
		log.FromContext(ctx).WithField("subject", subject).Info("No admin email configured, skipping notice")
		return nil
	}

	msg, err := s.newMessage(s.adminEmail, subject)
	if err != nil {
		return err
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending admin notice: %w", err)
	}

	return nil
}

func (s *SMTP) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat("Regal Star Gym", s.from); err != nil {
		return nil, fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(subject)

	return msg, nil
}
