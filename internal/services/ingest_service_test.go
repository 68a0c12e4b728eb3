package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailbox"
	"github.com/tonojkeee/koordinator/internal/settings"
)

type rawAttachment struct {
	name string
	size int
}

// buildRaw renders a multipart/mixed message with a text body and the given
// attachments filled with 'x'.
func buildRaw(subject, body string, atts ...rawAttachment) []byte {
	var b strings.Builder
	b.WriteString("From: sender@example.com\r\n")
	b.WriteString("To: alice@coordinator.local\r\n")
	if subject != "" {
		b.WriteString("Subject: " + subject + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"b1\"\r\n\r\n")
	b.WriteString("--b1\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body + "\r\n")
	for _, a := range atts {
		b.WriteString("--b1\r\n")
		b.WriteString("Content-Type: application/octet-stream\r\n")
		b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", a.name))
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		enc := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", a.size)))
		for len(enc) > 76 {
			b.WriteString(enc[:76] + "\r\n")
			enc = enc[76:]
		}
		b.WriteString(enc + "\r\n")
	}
	b.WriteString("--b1--\r\n")
	return []byte(b.String())
}

func TestDeliverFansOutPerRecipient(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	env.createUser(t, "alice")
	env.createUser(t, "bob")

	raw := buildRaw("Quarterly report", "see attached", rawAttachment{"report.pdf", 1024})
	report, err := env.ingest.Deliver(ctx, "sender@example.com", []string{
		"alice@coordinator.local",
		"Bob <bob@coordinator.local>",
		"alice@coordinator.local",
		"stranger@example.com",
	}, raw)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if report.State != StateCommitted {
		t.Errorf("state = %s, want committed", report.State)
	}
	if len(report.MessageIDs) != 2 {
		t.Fatalf("expected 2 copies, got %v", report.MessageIDs)
	}
	if len(report.Undeliverable) != 1 || report.Undeliverable[0] != "stranger@example.com" {
		t.Errorf("undeliverable = %v", report.Undeliverable)
	}

	var msgs []models.EmailMessage
	if err := env.db.Preload("Attachments").Order("id").Find(&msgs).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(msgs))
	}
	if msgs[0].AccountID == msgs[1].AccountID {
		t.Error("copies share an account")
	}
	for _, m := range msgs {
		if m.Subject != "Quarterly report" || m.FromAddress != "sender@example.com" {
			t.Errorf("unexpected header fields: %+v", m)
		}
		if m.Location != models.LocationInbox || m.IsRead {
			t.Errorf("copy not an unread inbox message: location=%s read=%v", m.Location, m.IsRead)
		}
		if !strings.Contains(m.BodyText, "see attached") {
			t.Errorf("body = %q", m.BodyText)
		}
		if len(m.Attachments) != 1 || m.Attachments[0].Size != 1024 {
			t.Fatalf("attachments = %+v", m.Attachments)
		}
	}
	if msgs[0].Attachments[0].StoragePath == msgs[1].Attachments[0].StoragePath {
		t.Error("copies share a stored file")
	}
	if env.store.count() != 2 {
		t.Errorf("expected 2 stored files, got %d", env.store.count())
	}
}

func TestDeliverAppliesQuotaPerCopy(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	env.createUser(t, "alice")
	env.createUser(t, "bob")
	if err := env.settings.Set(ctx, settings.KeyMaxAttachmentSizeMB, "1"); err != nil {
		t.Fatal(err)
	}
	if err := env.settings.Set(ctx, settings.KeyMaxTotalAttachmentSizeMB, "1"); err != nil {
		t.Fatal(err)
	}

	const kb = 1024
	raw := buildRaw("q", "body",
		rawAttachment{"a.txt", 600 * kb},
		rawAttachment{"b.txt", 300 * kb},
		rawAttachment{"c.txt", 200 * kb},
	)
	report, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local", "bob@coordinator.local"}, raw)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if report.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", report.Rejected)
	}

	var atts []models.EmailAttachment
	env.db.Order("id").Find(&atts)
	if len(atts) != 4 {
		t.Fatalf("expected 2 attachments on each copy, got %d", len(atts))
	}
	for _, a := range atts {
		if a.Filename == "c.txt" {
			t.Errorf("c.txt should exceed the per-copy quota")
		}
	}
}

func TestDeliverRollsBackOnStorageFailure(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	env.createUser(t, "alice")
	env.createUser(t, "bob")
	// The second copy's file write fails.
	env.store.failAt = 2

	raw := buildRaw("s", "b", rawAttachment{"x.pdf", 100})
	report, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local", "bob@coordinator.local"}, raw)
	if err == nil {
		t.Fatalf("expected failure, got report %+v", report)
	}
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("error %v is not a persistence failure", err)
	}

	var messages, accounts, attachments int64
	env.db.Model(&models.EmailMessage{}).Count(&messages)
	env.db.Model(&models.EmailAccount{}).Count(&accounts)
	env.db.Model(&models.EmailAttachment{}).Count(&attachments)
	if messages != 0 || accounts != 0 || attachments != 0 {
		t.Errorf("rows survived the abort: messages=%d accounts=%d attachments=%d", messages, accounts, attachments)
	}
	if env.store.count() != 0 {
		t.Errorf("%d orphaned files left behind", env.store.count())
	}

	var aborted int64
	env.db.Model(&models.Log{}).Where("action = ? AND level = ?", "deliver", models.LogLevelError).Count(&aborted)
	if aborted != 1 {
		t.Errorf("expected one aborted delivery audit row, got %d", aborted)
	}
}

func TestDeliverHonorsCancelledContext(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	env.createUser(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local"}, buildRaw("s", "b")); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	var n int64
	env.db.Model(&models.EmailMessage{}).Count(&n)
	if n != 0 {
		t.Errorf("%d messages persisted after cancellation", n)
	}
}

func TestDeliverDefaultsSubjectAndToleratesNoRecipients(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	report, err := env.ingest.Deliver(ctx, "s@example.com", nil, buildRaw("", "b"))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(report.MessageIDs) != 0 {
		t.Errorf("expected no copies, got %v", report.MessageIDs)
	}

	env.createUser(t, "alice")
	report, err = env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local"}, buildRaw("", "b"))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	var m models.EmailMessage
	env.db.First(&m, report.MessageIDs[0])
	if m.Subject != "(No Subject)" {
		t.Errorf("subject = %q", m.Subject)
	}
}

func TestDeliverToDomainCaseVariantReachesUserMailbox(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	acc, err := env.accounts.GetOrCreateForUser(ctx, alice)
	if err != nil {
		t.Fatalf("GetOrCreateForUser failed: %v", err)
	}

	report, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@Coordinator.Local"}, buildRaw("hi", "b"))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(report.MessageIDs) != 1 || len(report.Undeliverable) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	var accounts int64
	env.db.Model(&models.EmailAccount{}).Where("user_id = ?", alice.ID).Count(&accounts)
	if accounts != 1 {
		t.Errorf("alice has %d accounts, want 1", accounts)
	}

	inbox, err := env.email.ListMessages(ctx, acc.ID, MessageListOptions{View: mailbox.View{Kind: mailbox.ViewInbox}})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if inbox.Total != 1 || inbox.Messages[0].ID != report.MessageIDs[0] {
		t.Errorf("mail to alice@Coordinator.Local not in alice's inbox: %+v", inbox)
	}
}

func TestDeliverRejectionAuditRollsBack(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	env.createUser(t, "alice")
	env.createUser(t, "bob")
	if err := env.settings.Set(ctx, settings.KeyMaxAttachmentSizeMB, "1"); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	env.store.failAt = 2

	raw := buildRaw("s", "b", rawAttachment{"ok.pdf", 100}, rawAttachment{"big.bin", 1024*1024 + 1})
	if _, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local", "bob@coordinator.local"}, raw); err == nil {
		t.Fatal("expected failure")
	}

	var rejections int64
	env.db.Model(&models.Log{}).Where("action = ?", "attachment_rejected").Count(&rejections)
	if rejections != 0 {
		t.Errorf("%d rejection audit rows survived the abort", rejections)
	}

	env.store.failAt = 0
	if _, err := env.ingest.Deliver(ctx, "s@example.com", []string{"alice@coordinator.local"}, raw); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	env.db.Model(&models.Log{}).Where("action = ?", "attachment_rejected").Count(&rejections)
	if rejections != 1 {
		t.Errorf("expected 1 rejection audit row after commit, got %d", rejections)
	}
}
