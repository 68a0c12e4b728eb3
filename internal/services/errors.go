package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every lookup miss. Ownership failures are
// reported the same way so callers cannot probe for foreign rows.
var ErrNotFound = errors.New("not found")

var (
	ErrMessageNotFound    = fmt.Errorf("message %w", ErrNotFound)
	ErrAccountNotFound    = fmt.Errorf("email account %w", ErrNotFound)
	ErrFolderNotFound     = fmt.Errorf("folder %w", ErrNotFound)
	ErrAttachmentNotFound = fmt.Errorf("attachment %w", ErrNotFound)
)

var (
	// ErrPersistence wraps any storage or database failure that aborted a
	// unit of work. Nothing of that unit is visible afterwards.
	ErrPersistence = errors.New("persistence failure")
	// ErrTransmissionFailed marks an outbound relay failure. It is logged,
	// never returned from Send.
	ErrTransmissionFailed = errors.New("transmission failed")
	// ErrInvalidEmailData indicates a malformed request
	ErrInvalidEmailData = errors.New("invalid email data")
	// ErrFolderExists indicates a folder with the same slug already exists
	ErrFolderExists = errors.New("folder already exists")
)
