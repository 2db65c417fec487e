package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a caller's authority over a shared capture.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Collaborative reports whether r may be stored on a collaborator row.
func (r Role) Collaborative() bool { return r == RoleEditor || r == RoleViewer }

// CanEdit reports whether r may change metadata, roster and invite collaborators.
func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleEditor }

// Access is the result of resolving a user's role on a capture.
type Access struct {
	Granted bool
	Role    Role // empty when !Granted
}

// DefaultRosterStatus is stored when a roster entry arrives without a status.
const DefaultRosterStatus = "Absent"

// Capture is one attendance session shared through a share code.
type Capture struct {
	ID        string    // client-supplied or generated, globally unique
	OwnerID   uuid.UUID // FK -> users.id
	ShareCode string    // unique, human-typable
	Subject   *string
	Date      *string
	StartTime *string
	EndTime   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CapturePatch is a partial update; nil fields are left untouched. A
// non-nil Roster replaces the stored one, an empty slice clears it.
type CapturePatch struct {
	Subject   *string
	Date      *string
	StartTime *string
	EndTime   *string
	Roster    *[]RosterEntry
}

// Empty reports whether the patch changes nothing.
func (p CapturePatch) Empty() bool {
	return p.Subject == nil && p.Date == nil && p.StartTime == nil && p.EndTime == nil && p.Roster == nil
}

// CaptureSummary is a list entry annotated with the caller's access.
type CaptureSummary struct {
	Capture
	AccessType Role
	OwnerName  string // set for captures shared with the caller
}

// CaptureList splits a user's captures into disjoint owned and shared lists.
type CaptureList struct {
	Owned  []CaptureSummary
	Shared []CaptureSummary
}

// Collaborator is a non-owner user granted access to a capture.
type Collaborator struct {
	UserID   uuid.UUID
	Name     string
	Email    string
	Role     Role
	JoinedAt time.Time
}

// RosterEntry is one student's attendance state within a capture.
type RosterEntry struct {
	StudentID   string
	StudentName string
	Present     bool
	TimeMarked  *string
	Status      string
}

// CaptureDetail is a capture with its children, as seen by a specific caller.
type CaptureDetail struct {
	Capture
	Role          Role
	Roster        []RosterEntry
	Collaborators []Collaborator
}

// NewCapture is the input for creating a shared capture.
type NewCapture struct {
	ID        string // optional; generated when empty
	Subject   *string
	Date      *string
	StartTime *string
	EndTime   *string
	Roster    []RosterEntry
}

// CaptureSession is a personal (unshared) capture uploaded through sync.
type CaptureSession struct {
	ID        string
	UserID    uuid.UUID
	Subject   *string
	Date      *string
	StartTime *string
	EndTime   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
