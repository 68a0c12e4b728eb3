package models

import (
	"encoding/json"
	"time"
)

// EmailMessage is one mailbox-local copy of an email. The same inbound email
// delivered to several local recipients produces one row per recipient.
type EmailMessage struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	AccountID   uint         `gorm:"index;not null" json:"account_id"`
	Subject     string       `gorm:"size:500" json:"subject"`
	FromAddress string       `gorm:"size:255" json:"from_address"`
	ToAddress   string       `gorm:"type:text" json:"to_address"`
	CcAddress   string       `gorm:"type:text" json:"cc_address"`
	BccAddress  string       `gorm:"type:text" json:"bcc_address"`
	BodyText    string       `gorm:"type:text" json:"body_text"`
	BodyHTML    string       `gorm:"type:text" json:"body_html"`
	Location    LocationKind `gorm:"size:20;index;not null;default:inbox" json:"-"`
	FolderID    *uint        `gorm:"index" json:"-"`
	TrashedFrom LocationKind `gorm:"size:20" json:"-"`
	IsRead      bool         `gorm:"default:false" json:"is_read"`
	IsStarred   bool         `gorm:"default:false" json:"is_starred"`
	IsImportant bool         `gorm:"default:false" json:"is_important"`
	ReceivedAt  time.Time    `gorm:"index" json:"received_at"`

	// Relations
	Attachments []EmailAttachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments"`
}

// CurrentLocation returns the message's location as a single value.
func (m *EmailMessage) CurrentLocation() Location {
	return Location{Kind: m.Location, FolderID: m.FolderID}
}

// MoveTo places the message at loc. Moving to trash remembers where the
// message came from so a later restore puts it back.
func (m *EmailMessage) MoveTo(loc Location) {
	if loc.Kind == LocationTrash {
		if m.Location != LocationTrash {
			m.TrashedFrom = m.Location
		}
		m.Location = LocationTrash
		return
	}
	m.Location = loc.Kind
	m.TrashedFrom = ""
	if loc.Kind == LocationFolder {
		m.FolderID = loc.FolderID
	} else {
		m.FolderID = nil
	}
}

// Flags derives the legacy boolean representation of the message state.
func (m *EmailMessage) Flags() Flags {
	base := m.Location
	if base == LocationTrash {
		base = m.TrashedFrom
	}
	f := Flags{
		IsSent:      base == LocationSent,
		IsRead:      m.IsRead,
		IsDeleted:   m.Location == LocationTrash,
		IsArchived:  base == LocationArchive,
		IsStarred:   m.IsStarred,
		IsImportant: m.IsImportant,
	}
	if base == LocationFolder {
		f.FolderID = m.FolderID
	}
	return f
}

// ApplyFlags sets the message state from legacy flags. The location is
// resolved with the precedence trash, sent, archive, folder, inbox.
func (m *EmailMessage) ApplyFlags(f Flags) {
	m.IsRead = f.IsRead
	m.IsStarred = f.IsStarred
	m.IsImportant = f.IsImportant

	base := Location{Kind: LocationInbox}
	switch {
	case f.IsSent:
		base.Kind = LocationSent
	case f.IsArchived:
		base.Kind = LocationArchive
	case f.FolderID != nil:
		base = Location{Kind: LocationFolder, FolderID: f.FolderID}
	}

	m.Location = base.Kind
	m.FolderID = base.FolderID
	m.TrashedFrom = ""
	if f.IsDeleted {
		m.TrashedFrom = base.Kind
		m.Location = LocationTrash
	}
}

// MarshalJSON emits the location together with the derived legacy flags.
func (m EmailMessage) MarshalJSON() ([]byte, error) {
	type plain EmailMessage
	f := m.Flags()
	return json.Marshal(struct {
		plain
		Location   Location `json:"location"`
		IsSent     bool     `json:"is_sent"`
		IsDeleted  bool     `json:"is_deleted"`
		IsArchived bool     `json:"is_archived"`
		FolderID   *uint    `json:"folder_id"`
	}{
		plain:      plain(m),
		Location:   m.CurrentLocation(),
		IsSent:     f.IsSent,
		IsDeleted:  f.IsDeleted,
		IsArchived: f.IsArchived,
		FolderID:   f.FolderID,
	})
}
