package internal

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/notify"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// DonationService handles monetary donations and offers of goods
type DonationService interface {
	// CreateMonetary registers a monetary donation and sends the payment instructions to the donor
	CreateMonetary(ctx context.Context, req models.MonetaryDonationRequest) (*models.Donation, error)
	// CreateGoods registers an offer of goods
	CreateGoods(ctx context.Context, req models.GoodsDonationRequest) (*models.Donation, error)
	// Verify marks a pending donation as received and sends a receipt to the donor
	Verify(ctx context.Context, id string) (*models.Donation, error)
	// Get returns the donation with the given ID
	Get(ctx context.Context, id string) (*models.Donation, error)
	// List returns all donations - newest first
	List(ctx context.Context) ([]models.Donation, error)
}

// -- DonationService implementation -----------------------------------------------------------------------------------

type donationService struct {
	recordBase
	now func() time.Time
}

// NewDonationService creates a new donation service instance
func NewDonationService(
	repo repos.RecordRepo,
	mailer notify.Mailer,
	messages *notify.Messages,
	logger *logrus.Entry,
) DonationService {
	return &donationService{
		recordBase: recordBase{repo: repo, mailer: mailer, messages: messages, logger: logger},
		now:        time.Now,
	}
}

// CreateMonetary registers a monetary donation. The donor gets the Zelle instructions, the organization a notice
func (s *donationService) CreateMonetary(
	ctx context.Context,
	req models.MonetaryDonationRequest,
) (*models.Donation, error) {
	d := &models.Donation{
		ID:     uuid.NewString(),
		Type:   models.RecordTypeMonetary,
		Status: models.StatusPending,
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	d.Amount = req.Amount
	d.ContactEmail = req.ContactEmail
	d.PaymentMethod = req.PaymentMethod
	if d.PaymentMethod == "" {
		d.PaymentMethod = models.PaymentMethodZelle
	}
	d.CreatedAt = s.now().UTC()
	if err := s.put(ctx, d.ID, d.Type, d.Status, d); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, d.ID).Info("Monetary donation registered")
	if err := s.send(ctx, s.messages.MonetaryInstructions(*d), s.messages.MonetaryNotice(*d)); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateGoods registers an offer of goods and confirms it to the donor
func (s *donationService) CreateGoods(ctx context.Context, req models.GoodsDonationRequest) (*models.Donation, error) {
	d := &models.Donation{
		ID:     uuid.NewString(),
		Type:   models.RecordTypeGoods,
		Status: models.StatusPending,
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	d.GoodsType = req.DonationType
	d.Details = req.Details
	d.ContactEmail = req.ContactEmail
	d.CreatedAt = s.now().UTC()
	if err := s.put(ctx, d.ID, d.Type, d.Status, d); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, d.ID).Info("Goods donation registered")
	if err := s.send(ctx, s.messages.GoodsConfirmation(*d), s.messages.GoodsNotice(*d)); err != nil {
		return nil, err
	}
	return d, nil
}

// Verify moves a pending donation to VERIFIED
func (s *donationService) Verify(ctx context.Context, id string) (*models.Donation, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkPending(d.Status); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	d.Status = models.StatusVerified
	d.VerifiedAt = &now
	if err := s.put(ctx, d.ID, d.Type, d.Status, d); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, d.ID).Info("Donation verified")
	if err := s.send(ctx, s.messages.DonationReceipt(*d)); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the donation with the given ID
func (s *donationService) Get(ctx context.Context, id string) (*models.Donation, error) {
	var d models.Donation
	if err := s.get(ctx, id, &d); err != nil {
		return nil, err
	}
	if d.Type != models.RecordTypeMonetary && d.Type != models.RecordTypeGoods {
		return nil, ErrRecordNotFound
	}
	return &d, nil
}

// List returns the monetary and goods donations merged into one list
func (s *donationService) List(ctx context.Context) ([]models.Donation, error) {
	ret := []models.Donation{}
	for _, recordType := range []string{models.RecordTypeMonetary, models.RecordTypeGoods} {
		var lst []models.Donation
		if err := s.list(ctx, recordType, &lst); err != nil {
			return nil, err
		}
		ret = append(ret, lst...)
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret, nil
}
