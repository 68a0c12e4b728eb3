// Package mailbox maps message state to the views a client lists: the five
// locations plus the starred and important tag views.
package mailbox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"gorm.io/gorm"
)

// ViewKind names a list view.
type ViewKind string

const (
	ViewInbox     ViewKind = "inbox"
	ViewSent      ViewKind = "sent"
	ViewTrash     ViewKind = "trash"
	ViewArchive   ViewKind = "archive"
	ViewFolder    ViewKind = "folder"
	ViewStarred   ViewKind = "starred"
	ViewImportant ViewKind = "important"
)

// View is a list view. FolderID is set only for ViewFolder.
type View struct {
	Kind     ViewKind
	FolderID uint
}

func (v View) String() string {
	if v.Kind == ViewFolder {
		return strconv.FormatUint(uint64(v.FolderID), 10)
	}
	return string(v.Kind)
}

// LocationOf resolves legacy flags to the single location, with the
// precedence trash, sent, archive, folder, inbox.
func LocationOf(f models.Flags) models.Location {
	switch {
	case f.IsDeleted:
		return models.Trash
	case f.IsSent:
		return models.Sent
	case f.IsArchived:
		return models.Archive
	case f.FolderID != nil:
		return models.InFolder(*f.FolderID)
	default:
		return models.Inbox
	}
}

// Classify returns every view the message appears in. A message is in
// exactly one location view; the tag views never include trashed messages.
func Classify(f models.Flags) []View {
	loc := LocationOf(f)
	views := []View{viewOf(loc)}
	if loc.Kind == models.LocationTrash {
		return views
	}
	if f.IsStarred {
		views = append(views, View{Kind: ViewStarred})
	}
	if f.IsImportant {
		views = append(views, View{Kind: ViewImportant})
	}
	return views
}

func viewOf(loc models.Location) View {
	if loc.Kind == models.LocationFolder {
		return View{Kind: ViewFolder, FolderID: *loc.FolderID}
	}
	return View{Kind: ViewKind(loc.Kind)}
}

// ParseView accepts inbox, sent, trash, archive, starred, important or a
// numeric folder id. An empty string is the inbox.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch ViewKind(s) {
	case "":
		return View{Kind: ViewInbox}, nil
	case ViewInbox, ViewSent, ViewTrash, ViewArchive, ViewStarred, ViewImportant:
		return View{Kind: ViewKind(s)}, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return View{}, fmt.Errorf("unknown view %q", s)
	}
	return View{Kind: ViewFolder, FolderID: uint(id)}, nil
}

// Scope restricts a message query to v.
func Scope(v View) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch v.Kind {
		case ViewStarred:
			return db.Where("is_starred = ? AND location <> ?", true, models.LocationTrash)
		case ViewImportant:
			return db.Where("is_important = ? AND location <> ?", true, models.LocationTrash)
		case ViewFolder:
			return db.Where("location = ? AND folder_id = ?", models.LocationFolder, v.FolderID)
		default:
			return db.Where("location = ?", models.LocationKind(v.Kind))
		}
	}
}

// DemoteFolder moves the messages of a folder to the inbox. Trashed messages
// that came from the folder will restore to the inbox instead. Run it in the
// transaction that deletes the folder.
func DemoteFolder(tx *gorm.DB, accountID, folderID uint) error {
	if err := tx.Model(&models.EmailMessage{}).
		Where("account_id = ? AND location = ? AND folder_id = ?", accountID, models.LocationFolder, folderID).
		Updates(map[string]interface{}{"location": models.LocationInbox, "folder_id": nil}).Error; err != nil {
		return err
	}
	return tx.Model(&models.EmailMessage{}).
		Where("account_id = ? AND location = ? AND trashed_from = ? AND folder_id = ?",
			accountID, models.LocationTrash, models.LocationFolder, folderID).
		Updates(map[string]interface{}{"trashed_from": models.LocationInbox, "folder_id": nil}).Error
}
