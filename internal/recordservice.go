package internal

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/notify"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// ErrRecordNotFound is returned for operations on unknown donations and payments
var ErrRecordNotFound = MakeError(http.StatusNotFound, ErrCodeRecordNotFound, "Record not found")

// recordBase bundles what the donation, payment and contact services share: the record store and the mail delivery
type recordBase struct {
	repo     repos.RecordRepo
	mailer   notify.Mailer
	messages *notify.Messages
	logger   *logrus.Entry
}

func (b *recordBase) put(ctx context.Context, id, recordType, status string, record interface{}) error {
	if err := b.repo.Put(ctx, id, recordType, status, record); err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{log.FldID: id, log.FldRecordType: recordType}).
			Error("Failed to store record")
		return makeRepoError("Error while storing "+recordName(recordType), err)
	}
	return nil
}

func (b *recordBase) get(ctx context.Context, id string, target interface{}) error {
	if err := b.repo.Get(ctx, id, target); err != nil {
		if err == repos.ErrEntityNotExisting {
			return ErrRecordNotFound
		}
		b.logger.WithError(err).WithField(log.FldID, id).Error("Failed to load record")
		return makeRepoError("Error while retrieving record", err)
	}
	return nil
}

func (b *recordBase) list(ctx context.Context, recordType string, target interface{}) error {
	if err := b.repo.List(ctx, recordType, target); err != nil {
		b.logger.WithError(err).WithField(log.FldRecordType, recordType).Error("Failed to list records")
		return makeRepoError("Error while listing "+recordName(recordType)+"s", err)
	}
	return nil
}

// send delivers the given mails. The record has already been stored at this point and stays as it is if sending fails
func (b *recordBase) send(ctx context.Context, msgs ...notify.Message) error {
	for _, msg := range msgs {
		if err := b.mailer.Send(ctx, msg); err != nil {
			b.logger.WithError(err).WithField(log.FldMailTo, msg.To).Error("Failed to send notification")
			return MakeError(http.StatusInternalServerError, ErrCodeUpstreamFailed, "Failed to send notification mail").
				WithCause(err)
		}
	}
	return nil
}

// checkPending rejects transitions of records that already reached their final status
func checkPending(status string) error {
	if models.IsTerminalStatus(status) {
		return MakeError(http.StatusConflict, ErrCodeAlreadyFinalized, "Record has already been finalized")
	}
	return nil
}

func recordName(recordType string) string {
	switch recordType {
	case models.RecordTypeMonetary, models.RecordTypeGoods:
		return "donation"
	case models.RecordTypePayment:
		return "payment"
	case models.RecordTypeContact:
		return "contact message"
	}
	return "record"
}
