package notify

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
)

func newMessages() *Messages {
	return NewMessages("Game Mixer", "team@gamemixer.example")
}

func TestMessages_MonetaryInstructions(t *testing.T) {
	d := models.Donation{
		ID:            "don-1",
		Type:          models.RecordTypeMonetary,
		Status:        models.StatusPending,
		Amount:        25.5,
		PaymentMethod: models.PaymentMethodZelle,
		ContactEmail:  "donor@example.com",
	}
	msg := newMessages().MonetaryInstructions(d)
	assert.Equal(t, "donor@example.com", msg.To)
	assert.Equal(t, "Game Mixer - Donation Payment Instructions", msg.Subject)
	assert.Contains(t, msg.Body, "$25.50")
	assert.Contains(t, msg.Body, "Send payment to: team@gamemixer.example")
	assert.Contains(t, msg.Body, "memo: don-1")
	assert.Contains(t, msg.Body, "Game Mixer Team")

	notice := newMessages().MonetaryNotice(d)
	assert.Equal(t, "team@gamemixer.example", notice.To)
	assert.Contains(t, notice.Body, "Status: PENDING")
	assert.Contains(t, notice.Body, "Contact Email: donor@example.com")
}

func TestMessages_Contact(t *testing.T) {
	c := models.Contact{Name: "Ann", Email: "ann@example.com", Message: "Hello!", Category: "Volunteers"}
	msg := newMessages().ContactConfirmation(c)
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, "Thank you for contacting Game Mixer - Volunteers", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Ann,")
	assert.Contains(t, msg.Body, "Hello!")

	notice := newMessages().ContactNotice(c)
	assert.Equal(t, "team@gamemixer.example", notice.To)
	assert.Equal(t, "New Contact Form Submission - Volunteers", notice.Subject)
}

func TestMessages_Goods(t *testing.T) {
	d := models.Donation{ID: "don-2", Type: models.RecordTypeGoods, GoodsType: "GAMES", Details: "10 board games",
		ContactEmail: "donor@example.com"}
	assert.Contains(t, newMessages().GoodsConfirmation(d).Body, "Type: GAMES")
	assert.Contains(t, newMessages().GoodsNotice(d).Body, "Description: 10 board games")

	verified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	d.VerifiedAt = &verified
	receipt := newMessages().DonationReceipt(d)
	assert.Equal(t, "donor@example.com", receipt.To)
	assert.Contains(t, receipt.Body, "GAMES: 10 board games")
	assert.Contains(t, receipt.Body, "2024-03-01T10:00:00Z")
}

func TestMessages_Payment(t *testing.T) {
	completed := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	p := models.Payment{
		ID:            "pay-1",
		Amount:        40,
		CustomerEmail: "buyer@example.com",
		CustomerName:  "Bob",
		OrderDetails:  json.RawMessage(`{"ticket":"VIP"}`),
		CompletedAt:   &completed,
	}
	instr := newMessages().PaymentInstructions(p)
	assert.Equal(t, "buyer@example.com", instr.To)
	assert.Contains(t, instr.Body, "Dear Bob,")
	assert.Contains(t, instr.Body, "$40.00")
	assert.Contains(t, instr.Body, `"ticket": "VIP"`)

	conf := newMessages().PaymentConfirmation(p)
	assert.Equal(t, "Game Mixer - Payment Confirmed", conf.Subject)
	assert.Contains(t, conf.Body, "Payment ID: pay-1")
	assert.Contains(t, conf.Body, "2024-03-02T09:30:00Z")
}

func TestNewMailer_DisabledWithoutHost(t *testing.T) {
	l := logrus.New()
	l.Out = io.Discard
	m := NewMailer(models.MailConfig{}, logrus.NewEntry(l))
	require.IsType(t, &DisabledMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), Message{To: "x@example.com", Subject: "s", Body: "b"}))
}
