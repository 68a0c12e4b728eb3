// Package attachments applies the attachment policy to parsed MIME parts and
// stores the accepted ones.
package attachments

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailparse"
	"github.com/tonojkeee/koordinator/internal/metrics"
	"github.com/tonojkeee/koordinator/internal/settings"
	"github.com/tonojkeee/koordinator/internal/storage"
)

// Rejection reasons
const (
	ReasonExtensionNotAllowed = "extension_not_allowed"
	ReasonFileTooLarge        = "file_too_large"
	ReasonTotalQuotaExceeded  = "total_quota_exceeded"
)

// Candidate is a part that passed the policy.
type Candidate struct {
	Filename    string
	ContentType string
	Extension   string
	Content     []byte
}

// Size returns the decoded payload size
func (c Candidate) Size() int64 {
	return int64(len(c.Content))
}

// Rejection is a part refused by the policy.
type Rejection struct {
	Filename string
	Size     int64
	Reason   string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s (%d bytes): %s", r.Filename, r.Size, r.Reason)
}

// Select applies policy to parts in order. The cumulative counter starts at
// zero on every call, so each message copy gets its own quota.
func Select(parts []mailparse.Part, policy settings.AttachmentPolicy) ([]Candidate, []Rejection) {
	allowed := make(map[string]bool, len(policy.AllowedExtensions))
	for _, ext := range policy.AllowedExtensions {
		allowed[ext] = true
	}

	var accepted []Candidate
	var rejected []Rejection
	var total int64

	for _, part := range parts {
		if part.Multipart || !part.HasDisposition() || part.Filename == "" {
			continue
		}
		size := int64(len(part.Content))
		if size == 0 {
			continue
		}

		ext := strings.ToLower(filepath.Ext(part.Filename))
		if len(allowed) > 0 && !allowed[ext] {
			rejected = append(rejected, Rejection{part.Filename, size, ReasonExtensionNotAllowed})
			continue
		}
		if size > policy.MaxFileBytes {
			rejected = append(rejected, Rejection{part.Filename, size, ReasonFileTooLarge})
			continue
		}
		if total+size > policy.MaxTotalBytes {
			rejected = append(rejected, Rejection{part.Filename, size, ReasonTotalQuotaExceeded})
			continue
		}
		total += size

		contentType := part.MediaType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		accepted = append(accepted, Candidate{
			Filename:    part.Filename,
			ContentType: contentType,
			Extension:   ext,
			Content:     part.Content,
		})
	}

	return accepted, rejected
}

var safeExtension = regexp.MustCompile(`^\.[a-z0-9]{1,16}$`)

// StorageName returns a fresh unique name keeping ext when it is a plain
// alphanumeric extension.
func StorageName(ext string) string {
	name := uuid.New().String()
	if safeExtension.MatchString(ext) {
		name += ext
	}
	return name
}

// Extractor writes accepted attachments to a store.
type Extractor struct {
	store storage.Store
	// OnReject is called for every rejected part.
	OnReject func(Rejection)
}

// NewExtractor creates a new Extractor
func NewExtractor(store storage.Store) *Extractor {
	return &Extractor{
		store: store,
		OnReject: func(r Rejection) {
			log.Printf("[attachments] rejected %s", r)
		},
	}
}

// Extract selects parts under policy and stores every candidate. The
// returned attachments have no MessageID yet. Rejections go to OnReject and
// never fail the call; a storage error does.
func (e *Extractor) Extract(ctx context.Context, parts []mailparse.Part, policy settings.AttachmentPolicy) ([]models.EmailAttachment, error) {
	accepted, rejected := Select(parts, policy)
	e.Report(rejected)
	return e.Store(ctx, accepted)
}

// Report passes rejections to OnReject and counts them.
func (e *Extractor) Report(rejected []Rejection) {
	for _, r := range rejected {
		metrics.Attachments.WithLabelValues(r.Reason).Inc()
		if e.OnReject != nil {
			e.OnReject(r)
		}
	}
}

// Store writes candidates under fresh names. Files written before a failure
// are removed again.
func (e *Extractor) Store(ctx context.Context, accepted []Candidate) ([]models.EmailAttachment, error) {
	stored := make([]models.EmailAttachment, 0, len(accepted))
	for _, c := range accepted {
		path, err := e.store.Save(ctx, StorageName(c.Extension), c.Content)
		if err != nil {
			e.Discard(context.WithoutCancel(ctx), stored)
			return nil, fmt.Errorf("store attachment %q: %w", c.Filename, err)
		}
		metrics.Attachments.WithLabelValues("accepted").Inc()
		stored = append(stored, models.EmailAttachment{
			Filename:    c.Filename,
			ContentType: c.ContentType,
			Size:        c.Size(),
			StoragePath: path,
		})
	}
	return stored, nil
}

// Discard removes the stored files of atts, logging failures.
func (e *Extractor) Discard(ctx context.Context, atts []models.EmailAttachment) {
	for _, a := range atts {
		if err := e.store.Remove(ctx, a.StoragePath); err != nil {
			log.Printf("[attachments] failed to remove orphaned file %s: %v", a.StoragePath, err)
		}
	}
}
