// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/and161185/filekeeper/internal/fpath"
)

// MasterEntry is the authoritative permission record of a file.
// (Owner, Path) is the primary key; per-user access entries share the shape
// and are keyed by (user, Path) for every member of Users.
type MasterEntry struct {
	Owner      string
	Path       string // normalized form
	Read       bool
	Write      bool
	Users      []string   // user IDs permitted access, always contains Owner
	DeleteTime *time.Time // nil unless a delete is scheduled
}

// NewMasterEntry returns the entry written when p is first created.
func NewMasterEntry(p fpath.FilePath) MasterEntry {
	return MasterEntry{
		Owner: p.Owner(),
		Path:  p.Normalized(),
		Read:  true,
		Write: true,
		Users: []string{p.Owner()},
	}
}

// CreateOutcome reports the result of a conditional master entry create.
type CreateOutcome int

const (
	// Created means this call inserted the entry and is the logical creator.
	Created CreateOutcome = iota + 1
	// AlreadyExisted means an entry was present and nothing was written.
	AlreadyExisted
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExisted:
		return "already-existed"
	default:
		return "unknown"
	}
}

// CreateFileRequest is the request accepted by the request handler.
type CreateFileRequest struct {
	UserID   string `json:"userID"`
	FilePath string `json:"filePath"`
}

// CreateFileResponse is returned on successful creation.
type CreateFileResponse struct {
	FilePath string `json:"filePath"` // absolute form
}
