package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Record types stored inside the record store
const (
	RecordTypeMonetary = "MONETARY"
	RecordTypeGoods    = "GOODS"
	RecordTypePayment  = "PAYMENT"
	RecordTypeContact  = "CONTACT"
)

// Status values of donations and payments. A record starts as StatusPending and is moved to one of the terminal states
// by an administrator
const (
	StatusPending   = "PENDING"
	StatusVerified  = "VERIFIED"
	StatusCompleted = "COMPLETED"
)

// PaymentMethodZelle is the only payment method accepted for now
const PaymentMethodZelle = "ZELLE"

// GoodsTypes lists the kinds of goods that can be offered as a donation
var GoodsTypes = []string{"VENUE_SPACE", "GAMES", "GIFTS", "OTHER"}

// ContactCategories lists the categories a contact message can be filed under
var ContactCategories = []string{"Sponsors and Partners", "Donation", "Membership", "Volunteers", "Other"}

// DefaultContactCategory is used when no category has been sent with a contact message
const DefaultContactCategory = "Other"

// IsTerminalStatus checks if no further status transition is possible from the given status
func IsTerminalStatus(status string) bool {
	return status == StatusVerified || status == StatusCompleted
}

// Donation is either a monetary donation (to be paid via Zelle) or an offer of goods
type Donation struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	// Monetary donations only
	Amount        float64 `json:"amount,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	// Goods donations only
	GoodsType    string     `json:"goodsType,omitempty"`
	Details      string     `json:"details,omitempty"`
	ContactEmail string     `json:"contactEmail"`
	CreatedAt    time.Time  `json:"createdAt"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
}

// MonetaryDonationRequest is sent by donors announcing a monetary donation
type MonetaryDonationRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	ContactEmail  string  `json:"contactEmail" validate:"required,email"`
	PaymentMethod string  `json:"paymentMethod" validate:"omitempty,oneof=ZELLE"`
}

// GoodsDonationRequest is sent by donors offering goods
type GoodsDonationRequest struct {
	DonationType string `json:"donationType" validate:"required,oneof=VENUE_SPACE GAMES GIFTS OTHER"`
	Details      string `json:"details" validate:"required"`
	ContactEmail string `json:"contactEmail" validate:"required,email"`
}

// Payment is an order that is paid via Zelle and confirmed manually
type Payment struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Amount        float64         `json:"amount"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerName  string          `json:"customerName"`
	OrderDetails  json.RawMessage `json:"orderDetails"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// PaymentRequest is sent by customers ordering something
type PaymentRequest struct {
	Amount        float64         `json:"amount" validate:"required,gt=0"`
	CustomerEmail string          `json:"customerEmail" validate:"required,email"`
	CustomerName  string          `json:"customerName" validate:"required"`
	OrderDetails  json.RawMessage `json:"orderDetails" validate:"required"`
}

// Contact is a message sent via the contact form
type Contact struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContactRequest is the content of the contact form
type ContactRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Message  string `json:"message" validate:"required"`
	Category string `json:"category" validate:"omitempty,oneof='Sponsors and Partners' Donation Membership Volunteers Other"`
}
