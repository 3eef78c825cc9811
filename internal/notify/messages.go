package notify

import (
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

// Messages builds the notification mails. Mails addressed to the organization go to the sender address
type Messages struct {
	org     string
	sender  string
	printer *message.Printer
}

// NewMessages creates a message builder for the given organization name and sender address
func NewMessages(orgName, sender string) *Messages {
	return &Messages{
		org:     orgName,
		sender:  sender,
		printer: message.NewPrinter(language.AmericanEnglish),
	}
}

// amount formats a dollar amount, e.g. "$1,234.50"
func (m *Messages) amount(v float64) string {
	return m.printer.Sprintf("$%.2f", v)
}

func (m *Messages) signature() string {
	return "\nBest regards,\n" + m.org + " Team"
}

// ContactConfirmation thanks the sender of a contact message
func (m *Messages) ContactConfirmation(c models.Contact) Message {
	return Message{
		To:      c.Email,
		Subject: m.printer.Sprintf("Thank you for contacting %s - %s", m.org, c.Category),
		Body: m.printer.Sprintf("Dear %s,\n\nThank you for contacting us regarding %s. "+
			"We have received your message and will get back to you soon.\n\nYour message:\n%s\n",
			c.Name, c.Category, c.Message) + m.signature(),
	}
}

// ContactNotice tells the organization about a new contact message
func (m *Messages) ContactNotice(c models.Contact) Message {
	return Message{
		To:      m.sender,
		Subject: m.printer.Sprintf("New Contact Form Submission - %s", c.Category),
		Body: m.printer.Sprintf("New contact form submission received:\n\nFrom: %s\nEmail: %s\nCategory: %s\n\n"+
			"Message:\n%s\n\nPlease review and respond to this inquiry within 24 hours.\n",
			c.Name, c.Email, c.Category, c.Message),
	}
}

// MonetaryInstructions explains the donor how to pay a monetary donation via Zelle
func (m *Messages) MonetaryInstructions(d models.Donation) Message {
	amount := m.amount(d.Amount)
	return Message{
		To:      d.ContactEmail,
		Subject: m.org + " - Donation Payment Instructions",
		Body: m.printer.Sprintf("Dear Donor,\n\nThank you for your generous donation of %s! "+
			"Please follow these steps to complete your donation:\n\n"+
			"1. Open your Zelle app or banking app with Zelle\n"+
			"2. Send payment to: %s\n"+
			"3. Amount to send: %s\n"+
			"4. Important: Include this Donation ID in the memo: %s\n\n"+
			"Once you have completed the payment, we will send you a donation receipt.\n",
			amount, m.sender, amount, d.ID) + m.signature(),
	}
}

// MonetaryNotice tells the organization about a new monetary donation waiting for payment
func (m *Messages) MonetaryNotice(d models.Donation) Message {
	return Message{
		To:      m.sender,
		Subject: "New Monetary Donation Received",
		Body: m.printer.Sprintf("New monetary donation initiated:\n\nAmount: %s\nContact Email: %s\n"+
			"Payment Method: %s\nDonation ID: %s\nStatus: %s\n\n"+
			"Please check the Zelle account for the incoming payment and verify the donation afterwards.\n",
			m.amount(d.Amount), d.ContactEmail, d.PaymentMethod, d.ID, d.Status),
	}
}

// GoodsConfirmation thanks the donor for an offer of goods
func (m *Messages) GoodsConfirmation(d models.Donation) Message {
	return Message{
		To:      d.ContactEmail,
		Subject: "Thank You for Your Donation Offer",
		Body: m.printer.Sprintf("Dear Donor,\n\nThank you for your generous donation offer! "+
			"We have received your submission and will contact you soon to discuss the details.\n\n"+
			"Donation Details:\nType: %s\nDescription: %s\n\nReference Number: %s\n",
			d.GoodsType, d.Details, d.ID) + m.signature(),
	}
}

// GoodsNotice tells the organization about a new offer of goods
func (m *Messages) GoodsNotice(d models.Donation) Message {
	return Message{
		To:      m.sender,
		Subject: "New Goods Donation Offer Received",
		Body: m.printer.Sprintf("New goods donation offer received:\n\nType: %s\nDescription: %s\n"+
			"Contact Email: %s\nDonation ID: %s\n\nPlease contact the donor within 24 hours.\n",
			d.GoodsType, d.Details, d.ContactEmail, d.ID),
	}
}

// DonationReceipt confirms a verified donation to the donor
func (m *Messages) DonationReceipt(d models.Donation) Message {
	var what string
	if d.Type == models.RecordTypeMonetary {
		what = m.printer.Sprintf("your donation of %s", m.amount(d.Amount))
	} else {
		what = m.printer.Sprintf("your donation (%s: %s)", d.GoodsType, d.Details)
	}
	return Message{
		To:      d.ContactEmail,
		Subject: m.org + " - Donation Receipt",
		Body: m.printer.Sprintf("Dear Donor,\n\nWe have received %s. Thank you for supporting %s!\n\n"+
			"Donation ID: %s\nDate: %s\n", what, m.org, d.ID, formatDate(d.VerifiedAt)) + m.signature(),
	}
}

// PaymentInstructions explains the customer how to pay an order via Zelle
func (m *Messages) PaymentInstructions(p models.Payment) Message {
	amount := m.amount(p.Amount)
	return Message{
		To:      p.CustomerEmail,
		Subject: m.org + " - Payment Instructions",
		Body: m.printer.Sprintf("Dear %s,\n\nThank you for your order at %s. "+
			"Please follow these steps to complete your payment of %s:\n\n"+
			"1. Open your Zelle app or banking app with Zelle\n"+
			"2. Send payment to: %s\n"+
			"3. Amount to send: %s\n"+
			"4. Important: Include this Payment ID in the memo: %s\n\n"+
			"Once you have completed the payment, we will verify and process your order.\n\n"+
			"Order Details:\n%s\n",
			p.CustomerName, m.org, amount, m.sender, amount, p.ID, orderDetails(p.OrderDetails)) + m.signature(),
	}
}

// PaymentConfirmation confirms a completed payment to the customer
func (m *Messages) PaymentConfirmation(p models.Payment) Message {
	amount := m.amount(p.Amount)
	return Message{
		To:      p.CustomerEmail,
		Subject: m.org + " - Payment Confirmed",
		Body: m.printer.Sprintf("Dear %s,\n\nWe have confirmed your payment of %s. Thank you for your purchase!\n\n"+
			"Order Details:\n%s\n\nPayment ID: %s\nAmount: %s\nDate: %s\n",
			p.CustomerName, amount, orderDetails(p.OrderDetails), p.ID, amount, formatDate(p.CompletedAt)) +
			m.signature(),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// orderDetails pretty-prints the order as JSON
func orderDetails(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "-"
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}
