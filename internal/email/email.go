// Package email renders and sends transactional mail.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/porter-backend/pkg/enums"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

// Recipient is the addressee of a message.
type Recipient struct {
	Email    string
	FullName string
}

// OrderSummary is the order data the templates show.
type OrderSummary struct {
	ID              uuid.UUID
	Status          enums.OrderStatus
	PickupAddress   string
	DeliveryAddress string
	PackageType     enums.PackageType
	Weight          decimal.Decimal
	ScheduledDate   time.Time
	Cost            decimal.Decimal
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Emailer sends the transactional emails of the order lifecycle.
type Emailer interface {
	SendWelcome(ctx context.Context, to Recipient) error
	SendOrderConfirmation(ctx context.Context, to Recipient, order OrderSummary) error
	SendOrderStatusUpdate(ctx context.Context, to Recipient, order OrderSummary) error
}

var templates = template.Must(template.New("email").Parse(`
{{define "welcome"}}<h1>Welcome aboard, {{.Name}}!</h1>
<p>Thank you for joining Porter Logistics. We're excited to have you as part of our community.</p>{{end}}
{{define "confirmation"}}<h1>Order Confirmation</h1>
<p>Your order has been successfully placed.</p>
<p>Order ID: {{.Order.ID}}</p>
<p>Status: {{.Order.Status}}</p>
<h2>Order Details</h2>
<ul>
<li>Pickup Address: {{.Order.PickupAddress}}</li>
<li>Delivery Address: {{.Order.DeliveryAddress}}</li>
<li>Package Type: {{.Order.PackageType}}</li>
<li>Weight: {{.Order.Weight.StringFixed 2}} kg</li>
<li>Scheduled Date: {{.Order.ScheduledDate.Format "Jan 2, 2006"}}</li>
<li>Cost: ${{.Order.Cost.StringFixed 2}}</li>
</ul>{{end}}
{{define "status"}}<h1>Order Status Update</h1>
<p>Your order status has been updated.</p>
<p>Order ID: {{.Order.ID}}</p>
<p>New Status: {{.Order.Status}}</p>
<p>Updated at: {{.SentAt.Format "Jan 2, 2006 15:04 MST"}}</p>{{end}}
`))

type templateData struct {
	Name   string
	Order  OrderSummary
	SentAt time.Time
}

type emailer struct {
	sender Sender
	now    func() time.Time
}

// NewEmailer renders templates and hands the result to sender.
func NewEmailer(sender Sender) Emailer {
	return &emailer{sender: sender, now: time.Now}
}

func (e *emailer) SendWelcome(ctx context.Context, to Recipient) error {
	return e.send(ctx, to, "Welcome to Porter Logistics", "welcome", templateData{Name: to.FullName})
}

func (e *emailer) SendOrderConfirmation(ctx context.Context, to Recipient, order OrderSummary) error {
	subject := fmt.Sprintf("Order Confirmation #%s", order.ID)
	return e.send(ctx, to, subject, "confirmation", templateData{Name: to.FullName, Order: order})
}

func (e *emailer) SendOrderStatusUpdate(ctx context.Context, to Recipient, order OrderSummary) error {
	subject := fmt.Sprintf("Order Status Update #%s", order.ID)
	return e.send(ctx, to, subject, "status", templateData{Name: to.FullName, Order: order, SentAt: e.now().UTC()})
}

func (e *emailer) send(ctx context.Context, to Recipient, subject, name string, data templateData) error {
	if to.Email == "" {
		return fmt.Errorf("recipient email required")
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("render %s email: %w", name, err)
	}
	return e.sender.Send(ctx, Message{To: to.Email, Subject: subject, HTML: body.String()})
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"email_to":      msg.To,
		"email_subject": msg.Subject,
	}), "email not sent: log provider")
	return nil
}
