package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tonojkeee/koordinator/internal/attachments"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailparse"
	"github.com/tonojkeee/koordinator/internal/metrics"
	"github.com/tonojkeee/koordinator/internal/settings"
	"gorm.io/gorm"
)

// DeliveryState is the stage an ingestion call has reached.
type DeliveryState string

const (
	StateParsing              DeliveryState = "parsing"
	StateBodyExtracted        DeliveryState = "body_extracted"
	StateAttachmentsExtracted DeliveryState = "attachments_extracted"
	StateRecipientsResolved   DeliveryState = "recipients_resolved"
	StatePersisting           DeliveryState = "persisting"
	StateCommitted            DeliveryState = "committed"
	StateAborted              DeliveryState = "aborted"
)

// DeliveryReport summarizes a committed ingestion.
type DeliveryReport struct {
	MessageIDs    []uint        `json:"message_ids"`
	Undeliverable []string      `json:"undeliverable,omitempty"`
	Rejected      int           `json:"rejected"`
	State         DeliveryState `json:"state"`
}

// Ingester accepts raw inbound messages.
type Ingester interface {
	Deliver(ctx context.Context, sender string, rcpts []string, raw []byte) (*DeliveryReport, error)
}

// IngestService stores inbound messages, one copy per local recipient, in a
// single transaction.
type IngestService struct {
	db         *gorm.DB
	accounts   *AccountService
	extractor  *attachments.Extractor
	settings   *settings.Settings
	logService *LogService
	now        func() time.Time
}

// NewIngestService creates a new IngestService instance
func NewIngestService(db *gorm.DB, accounts *AccountService, extractor *attachments.Extractor, s *settings.Settings, logService *LogService) *IngestService {
	return &IngestService{
		db:         db,
		accounts:   accounts,
		extractor:  extractor,
		settings:   s,
		logService: logService,
		now:        time.Now,
	}
}

// stagedCopy is one recipient's message with its stored files, waiting for
// the flush.
type stagedCopy struct {
	message     *models.EmailMessage
	attachments []models.EmailAttachment
}

// Deliver parses raw once and persists one copy per distinct recipient
// account. Either every copy with its attachments is committed or nothing
// is; files written for an aborted call are removed.
func (s *IngestService) Deliver(ctx context.Context, sender string, rcpts []string, raw []byte) (*DeliveryReport, error) {
	report := &DeliveryReport{State: StateParsing}
	details := DeliveryDetails{Sender: sender, Recipients: rcpts}

	parsed, err := mailparse.Parse(raw)
	if err != nil {
		return nil, s.abort(report, details, nil, fmt.Errorf("%w: %w", ErrInvalidEmailData, err))
	}
	metrics.DecodeFailures.Add(float64(len(parsed.Skipped)))
	report.State = StateBodyExtracted

	policy, err := s.settings.AttachmentPolicy(ctx)
	if err != nil {
		return nil, s.abort(report, details, nil, fmt.Errorf("%w: read attachment policy: %w", ErrPersistence, err))
	}
	accepted, rejected := attachments.Select(parsed.Parts, policy)
	s.extractor.Report(rejected)
	report.Rejected = len(rejected)
	report.State = StateAttachmentsExtracted

	var written []models.EmailAttachment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := s.accounts.ResolveBatch(ctx, tx, rcpts)
		if err != nil {
			return err
		}
		report.State = StateRecipientsResolved

		receivedAt := s.now()
		toAddress := strings.Join(rcpts, ", ")
		seenAccount := make(map[uint]bool)
		seenUndeliverable := make(map[string]bool)
		var staged []stagedCopy

		for _, rcpt := range rcpts {
			addr := NormalizeAddress(rcpt)
			acc := resolved[addr]
			if acc == nil {
				if addr != "" && !seenUndeliverable[addr] {
					seenUndeliverable[addr] = true
					report.Undeliverable = append(report.Undeliverable, addr)
				}
				continue
			}
			if seenAccount[acc.ID] {
				continue
			}
			seenAccount[acc.ID] = true

			files, err := s.extractor.Store(ctx, accepted)
			if err != nil {
				return err
			}
			written = append(written, files...)

			staged = append(staged, stagedCopy{
				message: &models.EmailMessage{
					AccountID:   acc.ID,
					Subject:     parsed.Subject,
					FromAddress: sender,
					ToAddress:   toAddress,
					BodyText:    parsed.BodyText,
					BodyHTML:    parsed.BodyHTML,
					Location:    models.LocationInbox,
					IsRead:      false,
					ReceivedAt:  receivedAt,
				},
				attachments: files,
			})
		}

		report.State = StatePersisting
		for _, c := range staged {
			if err := tx.Omit("Attachments").Create(c.message).Error; err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		for _, c := range staged {
			if len(c.attachments) == 0 {
				continue
			}
			for i := range c.attachments {
				c.attachments[i].MessageID = c.message.ID
			}
			if err := tx.Create(&c.attachments).Error; err != nil {
				return fmt.Errorf("insert attachments: %w", err)
			}
		}

		details.Copies = len(staged)
		details.Undeliverable = report.Undeliverable
		audit := s.logService.WithDB(tx)
		for _, r := range rejected {
			if err := audit.LogAttachmentRejected(sender, r.Filename, r.Size, r.Reason); err != nil {
				return fmt.Errorf("write audit log: %w", err)
			}
		}
		if err := audit.LogDelivery(details, nil); err != nil {
			return fmt.Errorf("write audit log: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		for _, c := range staged {
			report.MessageIDs = append(report.MessageIDs, c.message.ID)
		}
		return nil
	})
	if err != nil {
		report.MessageIDs = nil
		return nil, s.abort(report, details, written, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	report.State = StateCommitted
	metrics.Deliveries.WithLabelValues("committed").Inc()
	metrics.Copies.Add(float64(len(report.MessageIDs)))
	metrics.Undeliverable.Add(float64(len(report.Undeliverable)))
	log.Printf("[ingest] delivered message from %s: %d copies, %d undeliverable, %d attachments rejected",
		sender, len(report.MessageIDs), len(report.Undeliverable), report.Rejected)
	return report, nil
}

// abort discards written files and records the failure. It returns err.
func (s *IngestService) abort(report *DeliveryReport, details DeliveryDetails, written []models.EmailAttachment, err error) error {
	details.State = string(report.State)
	report.State = StateAborted

	if len(written) > 0 {
		s.extractor.Discard(context.Background(), written)
	}
	metrics.Deliveries.WithLabelValues("aborted").Inc()
	log.Printf("[ingest] delivery from %s aborted in state %s: %v", details.Sender, details.State, err)
	if logErr := s.logService.LogDelivery(details, err); logErr != nil {
		log.Printf("[ingest] failed to write audit log: %v", logErr)
	}
	return err
}
