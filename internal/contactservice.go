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

// ContactService stores the messages sent via the contact form
type ContactService interface {
	// Submit stores the message, confirms it to the sender and forwards it to the organization
	Submit(ctx context.Context, req models.ContactRequest) (*models.Contact, error)
	// List returns all contact messages - newest first
	List(ctx context.Context) ([]models.Contact, error)
}

type contactService struct {
	recordBase
	now func() time.Time
}

// NewContactService creates a new contact service instance
func NewContactService(
	repo repos.RecordRepo,
	mailer notify.Mailer,
	messages *notify.Messages,
	logger *logrus.Entry,
) ContactService {
	return &contactService{
		recordBase: recordBase{repo: repo, mailer: mailer, messages: messages, logger: logger},
		now:        time.Now,
	}
}

func (s *contactService) Submit(ctx context.Context, req models.ContactRequest) (*models.Contact, error) {
	c := &models.Contact{
		ID:   uuid.NewString(),
		Type: models.RecordTypeContact,
	}
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	c.Name = req.Name
	c.Email = req.Email
	c.Message = req.Message
	c.Category = req.Category
	if c.Category == "" {
		c.Category = models.DefaultContactCategory
	}
	c.CreatedAt = s.now().UTC()
	// Contact messages have no state to move through
	if err := s.put(ctx, c.ID, c.Type, "", c); err != nil {
		return nil, err
	}
	s.logger.WithField(log.FldID, c.ID).Info("Contact message received")
	if err := s.send(ctx, s.messages.ContactConfirmation(*c), s.messages.ContactNotice(*c)); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *contactService) List(ctx context.Context) ([]models.Contact, error) {
	ret := []models.Contact{}
	if err := s.list(ctx, models.RecordTypeContact, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}
