package models

import (
	"fmt"
	"strconv"
	"strings"
)

// LocationKind names the mailbox location a message lives in.
type LocationKind string

const (
	LocationInbox   LocationKind = "inbox"
	LocationSent    LocationKind = "sent"
	LocationTrash   LocationKind = "trash"
	LocationArchive LocationKind = "archive"
	LocationFolder  LocationKind = "folder"
)

// IsValid checks if the location kind is one of the known values
func (k LocationKind) IsValid() bool {
	switch k {
	case LocationInbox, LocationSent, LocationTrash, LocationArchive, LocationFolder:
		return true
	}
	return false
}

// Location is the single authoritative place of a message:
// Inbox, Sent, Trash, Archive or Folder(id).
type Location struct {
	Kind     LocationKind `json:"kind"`
	FolderID *uint        `json:"folder_id,omitempty"`
}

// Inbox, Sent, Trash and Archive are the fixed locations.
var (
	Inbox   = Location{Kind: LocationInbox}
	Sent    = Location{Kind: LocationSent}
	Trash   = Location{Kind: LocationTrash}
	Archive = Location{Kind: LocationArchive}
)

// InFolder returns the location of a custom folder.
func InFolder(id uint) Location {
	return Location{Kind: LocationFolder, FolderID: &id}
}

// String renders the location as "inbox", "sent", ... or "folder:<id>".
func (l Location) String() string {
	if l.Kind == LocationFolder && l.FolderID != nil {
		return fmt.Sprintf("folder:%d", *l.FolderID)
	}
	return string(l.Kind)
}

// ParseLocation parses the String form of a location.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if rest, ok := strings.CutPrefix(s, "folder:"); ok {
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil || id == 0 {
			return Location{}, fmt.Errorf("invalid folder location %q", s)
		}
		return InFolder(uint(id)), nil
	}
	k := LocationKind(s)
	if !k.IsValid() || k == LocationFolder {
		return Location{}, fmt.Errorf("invalid location %q", s)
	}
	return Location{Kind: k}, nil
}

// Flags is the legacy boolean representation of a message's state.
type Flags struct {
	IsSent      bool  `json:"is_sent"`
	IsRead      bool  `json:"is_read"`
	IsDeleted   bool  `json:"is_deleted"`
	IsArchived  bool  `json:"is_archived"`
	IsStarred   bool  `json:"is_starred"`
	IsImportant bool  `json:"is_important"`
	FolderID    *uint `json:"folder_id"`
}
