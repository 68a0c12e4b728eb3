package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailbox"
	"github.com/tonojkeee/koordinator/internal/mailparse"
	"github.com/tonojkeee/koordinator/internal/metrics"
	"github.com/tonojkeee/koordinator/internal/storage"
	"gorm.io/gorm"
)

// List limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// EmailService handles mailbox reads, updates and outbound sends
type EmailService struct {
	db          *gorm.DB
	store       storage.Store
	transmitter Transmitter
	logService  *LogService
	now         func() time.Time
}

// NewEmailService creates a new EmailService instance
func NewEmailService(db *gorm.DB, store storage.Store, transmitter Transmitter, logService *LogService) *EmailService {
	return &EmailService{
		db:          db,
		store:       store,
		transmitter: transmitter,
		logService:  logService,
		now:         time.Now,
	}
}

// SendEmailRequest represents a request to send an email
type SendEmailRequest struct {
	To       []string `json:"to"`
	Cc       []string `json:"cc"`
	Bcc      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	BodyText string   `json:"body_text"`
	BodyHTML string   `json:"body_html"`
}

// Send stores the message in the sender's Sent location, commits, and only
// then hands it to the transmitter. A transmission failure is logged and
// does not fail the call: the stored message is returned either way.
func (s *EmailService) Send(ctx context.Context, account *models.EmailAccount, req SendEmailRequest) (*models.EmailMessage, error) {
	to := cleanAddresses(req.To)
	if len(to) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidEmailData)
	}
	cc := cleanAddresses(req.Cc)
	bcc := cleanAddresses(req.Bcc)

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = mailparse.DefaultSubject
	}

	msg := &models.EmailMessage{
		AccountID:   account.ID,
		Subject:     subject,
		FromAddress: account.EmailAddress,
		ToAddress:   strings.Join(to, ", "),
		CcAddress:   strings.Join(cc, ", "),
		BccAddress:  strings.Join(bcc, ", "),
		BodyText:    req.BodyText,
		BodyHTML:    req.BodyHTML,
		Location:    models.LocationSent,
		IsRead:      true,
		ReceivedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("%w: store sent message: %w", ErrPersistence, err)
	}

	var userID uint
	if account.UserID != nil {
		userID = *account.UserID
	}
	details := SendDetails{MessageID: msg.ID, From: msg.FromAddress, To: msg.ToAddress, Subject: subject}

	raw, err := composeMessage(msg, to, cc)
	if err == nil {
		rcpts := append(append(append([]string{}, to...), cc...), bcc...)
		err = s.transmitter.Transmit(ctx, account.EmailAddress, rcpts, raw)
	}
	if err != nil {
		if !errors.Is(err, ErrTransmissionFailed) {
			err = fmt.Errorf("%w: %w", ErrTransmissionFailed, err)
		}
		log.Printf("[email] message %d stored but not transmitted: %v", msg.ID, err)
		metrics.Sends.WithLabelValues("failed").Inc()
	} else {
		metrics.Sends.WithLabelValues("transmitted").Inc()
	}
	if logErr := s.logService.LogSend(userID, details, err); logErr != nil {
		log.Printf("[email] failed to write audit log: %v", logErr)
	}

	return s.GetMessageByID(context.WithoutCancel(ctx), account.ID, msg.ID)
}

// composeMessage renders msg as multipart/alternative. Bcc recipients are
// envelope-only and never appear in the headers.
func composeMessage(msg *models.EmailMessage, to, cc []string) ([]byte, error) {
	var h mail.Header
	h.SetDate(msg.ReceivedAt)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}
	h.SetAddressList("From", []*mail.Address{{Address: msg.FromAddress}})
	h.SetAddressList("To", toMailAddresses(to))
	if len(cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(cc))
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if msg.BodyText != "" || msg.BodyHTML == "" {
		if err := writeInlinePart(w, "text/plain", msg.BodyText); err != nil {
			return nil, err
		}
	}
	if msg.BodyHTML != "" {
		if err := writeInlinePart(w, "text/html", msg.BodyHTML); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInlinePart(w *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func toMailAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		if parsed, err := mail.ParseAddress(a); err == nil {
			out = append(out, parsed)
			continue
		}
		out = append(out, &mail.Address{Address: NormalizeAddress(a)})
	}
	return out
}

// cleanAddresses trims entries and drops empty ones.
func cleanAddresses(in []string) []string {
	var out []string
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// MessageListOptions selects a page of one view
type MessageListOptions struct {
	View  mailbox.View
	Skip  int
	Limit int
}

// MessageListResult represents the result of listing messages
type MessageListResult struct {
	Total    int64                 `json:"total"`
	Skip     int                   `json:"skip"`
	Limit    int                   `json:"limit"`
	Messages []models.EmailMessage `json:"messages"`
}

// ListMessages lists a view of an account, newest first. Attachments of the
// page are fetched in one batch.
func (s *EmailService) ListMessages(ctx context.Context, accountID uint, opts MessageListOptions) (*MessageListResult, error) {
	if opts.Skip < 0 {
		opts.Skip = 0
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}

	query := s.db.WithContext(ctx).Model(&models.EmailMessage{}).
		Where("account_id = ?", accountID).
		Scopes(mailbox.Scope(opts.View))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	messages := []models.EmailMessage{}
	if err := query.Preload("Attachments").
		Order("received_at DESC, id DESC").
		Offset(opts.Skip).Limit(opts.Limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	return &MessageListResult{Total: total, Skip: opts.Skip, Limit: opts.Limit, Messages: messages}, nil
}

// GetMessageByID returns a message of the account with its attachments.
func (s *EmailService) GetMessageByID(ctx context.Context, accountID, id uint) (*models.EmailMessage, error) {
	var msg models.EmailMessage
	err := s.db.WithContext(ctx).Preload("Attachments").
		Where("id = ? AND account_id = ?", id, accountID).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// OpenMessage returns a message and marks it read.
func (s *EmailService) OpenMessage(ctx context.Context, accountID, id uint) (*models.EmailMessage, error) {
	msg, err := s.GetMessageByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if !msg.IsRead {
		if err := s.db.WithContext(ctx).Model(msg).Update("is_read", true).Error; err != nil {
			return nil, err
		}
		msg.IsRead = true
	}
	return msg, nil
}

// MessageUpdate is a partial update. The legacy flags are applied first;
// Location, when set, wins over them. FolderID 0 clears the folder.
type MessageUpdate struct {
	IsRead      *bool   `json:"is_read"`
	IsStarred   *bool   `json:"is_starred"`
	IsImportant *bool   `json:"is_important"`
	IsSent      *bool   `json:"is_sent"`
	IsDeleted   *bool   `json:"is_deleted"`
	IsArchived  *bool   `json:"is_archived"`
	FolderID    *uint   `json:"folder_id"`
	Location    *string `json:"location"`
}

// UpdateMessage applies upd to a message of the account.
func (s *EmailService) UpdateMessage(ctx context.Context, accountID, id uint, upd MessageUpdate) (*models.EmailMessage, error) {
	msg, err := s.GetMessageByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	f := msg.Flags()
	setBool(&f.IsRead, upd.IsRead)
	setBool(&f.IsStarred, upd.IsStarred)
	setBool(&f.IsImportant, upd.IsImportant)
	setBool(&f.IsSent, upd.IsSent)
	setBool(&f.IsDeleted, upd.IsDeleted)
	setBool(&f.IsArchived, upd.IsArchived)
	if upd.FolderID != nil {
		if *upd.FolderID == 0 {
			f.FolderID = nil
		} else {
			if err := s.checkFolder(ctx, accountID, *upd.FolderID); err != nil {
				return nil, err
			}
			folderID := *upd.FolderID
			f.FolderID = &folderID
		}
	}
	msg.ApplyFlags(f)

	if upd.Location != nil {
		loc, err := models.ParseLocation(*upd.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEmailData, err)
		}
		if loc.Kind == models.LocationFolder {
			if err := s.checkFolder(ctx, accountID, *loc.FolderID); err != nil {
				return nil, err
			}
		}
		msg.MoveTo(loc)
	}

	err = s.db.WithContext(ctx).Model(msg).
		Select("location", "folder_id", "trashed_from", "is_read", "is_starred", "is_important").
		Updates(msg).Error
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (s *EmailService) checkFolder(ctx context.Context, accountID, folderID uint) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.EmailFolder{}).
		Where("id = ? AND account_id = ?", folderID, accountID).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// DeleteMessage removes a message and its attachment rows for good. The files
// are removed after the commit; a failed removal only leaves an orphan.
func (s *EmailService) DeleteMessage(ctx context.Context, accountID, id uint) error {
	msg, err := s.GetMessageByID(ctx, accountID, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.EmailAttachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.EmailMessage{}, msg.ID).Error
	})
	if err != nil {
		return fmt.Errorf("%w: delete message: %w", ErrPersistence, err)
	}

	for _, a := range msg.Attachments {
		if err := s.store.Remove(context.WithoutCancel(ctx), a.StoragePath); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			log.Printf("[email] failed to remove attachment file %s: %v", a.StoragePath, err)
		}
	}
	return nil
}

// OpenAttachment returns an attachment of one of the account's messages with
// a reader over its content. The caller closes the reader.
func (s *EmailService) OpenAttachment(ctx context.Context, accountID, attachmentID uint) (*models.EmailAttachment, io.ReadCloser, error) {
	var att models.EmailAttachment
	err := s.db.WithContext(ctx).
		Joins("JOIN email_messages ON email_messages.id = email_attachments.message_id").
		Where("email_attachments.id = ? AND email_messages.account_id = ?", attachmentID, accountID).
		First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, att.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return &att, rc, nil
}
