package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/tonojkeee/koordinator/internal/database/models"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Projects":         "projects",
		"  Q3 / Finance  ": "q3-finance",
		"Café Münster":     "cafe-munster",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}

	fallback := regexp.MustCompile(`^folder-[0-9a-f]{8}$`)
	for _, in := range []string{"Входящие", "!!!", ""} {
		if got := Slugify(in); !fallback.MatchString(got) {
			t.Errorf("Slugify(%q) = %q, want a folder-xxxxxxxx fallback", in, got)
		}
	}
}

func TestFolderCreateListDelete(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()
	ctx := context.Background()

	acc := newSender(t, env, "alice")

	work, err := env.folders.CreateFolder(ctx, acc.ID, "Work")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := env.folders.CreateFolder(ctx, acc.ID, "work"); !errors.Is(err, ErrFolderExists) {
		t.Errorf("duplicate slug: %v", err)
	}
	if _, err := env.folders.CreateFolder(ctx, acc.ID, "Archive 2020"); err != nil {
		t.Fatalf("create folder: %v", err)
	}

	folders, err := env.folders.ListFolders(ctx, acc.ID)
	if err != nil || len(folders) != 2 || folders[0].Name != "Archive 2020" {
		t.Fatalf("list folders: %+v, %v", folders, err)
	}

	report, err := env.ingest.Deliver(ctx, "s@example.com", []string{acc.EmailAddress, acc.EmailAddress}, buildRaw("a", "b"))
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(report.MessageIDs) != 1 {
		t.Fatalf("duplicate recipient produced %d copies", len(report.MessageIDs))
	}
	id := report.MessageIDs[0]
	if _, err := env.email.UpdateMessage(ctx, acc.ID, id, MessageUpdate{FolderID: &work.ID}); err != nil {
		t.Fatalf("move: %v", err)
	}

	other := newSender(t, env, "bob")
	if err := env.folders.DeleteFolder(ctx, other.ID, work.ID); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("foreign delete: %v", err)
	}
	if err := env.folders.DeleteFolder(ctx, acc.ID, work.ID); err != nil {
		t.Fatalf("delete folder: %v", err)
	}

	msg, err := env.email.GetMessageByID(ctx, acc.ID, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if msg.Location != models.LocationInbox || msg.FolderID != nil {
		t.Errorf("message not demoted: %s %v", msg.Location, msg.FolderID)
	}
}
