package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/notify"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// PaymentService handles orders paid via Zelle
type PaymentService interface {
	// Create registers an order and sends the payment instructions to the customer
	Create(ctx context.Context, req models.PaymentRequest) (*models.Payment, error)
	// Confirm marks a pending payment as received
	Confirm(ctx context.Context, id string) (*models.Payment, error)
	// Get returns the payment with the given ID
	Get(ctx context.Context, id string) (*models.Payment, error)
	// List returns all payments - newest first
	List(ctx context.Context) ([]models.Payment, error)
}

type paymentService struct {
	recordBase
	now func() time.Time
}

// NewPaymentService creates a new payment service instance
func NewPaymentService(
	repo repos.RecordRepo,
	mailer notify.Mailer,
	messages *notify.Messages,
	logger *logrus.Entry,
) PaymentService {
	return &paymentService{
		recordBase: recordBase{repo: repo, mailer: mailer, messages: messages, logger: logger},
		now:        time.Now,
	}
}

func (s *paymentService) Create(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	p := &models.Payment{
		ID:     uuid.NewString(),
		Type:   models.RecordTypePayment,
		Status: models.StatusPending,
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	p.Amount = req.Amount
	p.CustomerEmail = req.CustomerEmail
	p.CustomerName = req.CustomerName
	p.OrderDetails = req.OrderDetails
	p.CreatedAt = s.now().UTC()
	if err := s.put(ctx, p.ID, p.Type, p.Status, p); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, p.ID).Info("Payment registered")
	if err := s.send(ctx, s.messages.PaymentInstructions(*p)); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *paymentService) Confirm(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkPending(p.Status); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p.Status = models.StatusCompleted
	p.CompletedAt = &now
	if err := s.put(ctx, p.ID, p.Type, p.Status, p); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, p.ID).Info("Payment confirmed")
	if err := s.send(ctx, s.messages.PaymentConfirmation(*p)); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *paymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.get(ctx, id, &p); err != nil {
		return nil, err
	}
	if p.Type != models.RecordTypePayment {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (s *paymentService) List(ctx context.Context) ([]models.Payment, error) {
	ret := []models.Payment{}
	if err := s.list(ctx, models.RecordTypePayment, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}
