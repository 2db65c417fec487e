// Package convert holds the JSON wire types of the HTTP API and their
// mapping to domain structs. The server and the CLI share them.
package convert

import (
	"time"

	"github.com/ditrix/ditrix-server/internal/model"
)

// Status values carried in every successful body.
const StatusOK = "ok"

// --- requests ---

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

type ResetRequest struct {
	Email       string `json:"email" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ProfileRequest is a partial update; avatarBase64 may also be a URL.
type ProfileRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	AvatarBase64 *string `json:"avatarBase64,omitempty"`
}

// Roster is the client form of a roster entry.
type Roster struct {
	ID      string  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	Present bool    `json:"present"`
	Time    *string `json:"time"`
	Status  string  `json:"status,omitempty"`
}

type CaptureCreateRequest struct {
	ID        string   `json:"id,omitempty" validate:"omitempty,max=128"`
	Subject   *string  `json:"subject"`
	Date      *string  `json:"date"`
	StartTime *string  `json:"start_time"`
	EndTime   *string  `json:"end_time"`
	Roster    []Roster `json:"roster" validate:"dive"`
}

// CaptureUpdateRequest patches metadata; a present roster replaces the stored one.
type CaptureUpdateRequest struct {
	Subject   *string   `json:"subject,omitempty"`
	Date      *string   `json:"date,omitempty"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Roster    *[]Roster `json:"roster,omitempty"`
}

type RosterRequest struct {
	Roster []Roster `json:"roster" validate:"dive"`
}

type CollaboratorRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=editor viewer"`
}

type SyncItem struct {
	CaptureID string  `json:"capture_id,omitempty"`
	Subject   *string `json:"subject"`
	Date      *string `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

type SyncUploadRequest struct {
	Captures []SyncItem `json:"captures"`
}

// --- responses ---

type ErrorResponse struct {
	Error string `json:"error"`
}

type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

type SignupResponse struct {
	Status  string  `json:"status"`
	Profile Profile `json:"profile"`
	Notice  string  `json:"notice"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   Profile   `json:"profile"`
	Notice    string    `json:"notice"`
}

type RefreshResponse struct {
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ProfileResponse struct {
	Status  string  `json:"status"`
	Profile Profile `json:"profile"`
}

// MessageResponse covers the bodies that only carry status, message and notice.
type MessageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

type HealthResponse struct {
	OK    bool  `json:"ok"`
	DB    bool  `json:"db"`
	Redis *bool `json:"redis,omitempty"`
}

type Capture struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ShareCode  string    `json:"share_code"`
	Subject    *string   `json:"subject"`
	Date       *string   `json:"date"`
	StartTime  *string   `json:"start_time"`
	EndTime    *string   `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	AccessType string    `json:"access_type,omitempty"`
	OwnerName  string    `json:"owner_name,omitempty"`
}

type Collaborator struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type CaptureDetail struct {
	Capture
	Role          string         `json:"role"`
	Roster        []Roster       `json:"roster"`
	Collaborators []Collaborator `json:"collaborators"`
}

type CaptureListResponse struct {
	Status string    `json:"status"`
	Owned  []Capture `json:"owned"`
	Shared []Capture `json:"shared"`
}

type CaptureCreateResponse struct {
	Status    string `json:"status"`
	CaptureID string `json:"captureId"`
	ShareCode string `json:"shareCode"`
}

type CaptureResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Capture CaptureDetail `json:"capture"`
}

type RosterResponse struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	Roster []Roster `json:"roster"`
}

type CollaboratorsResponse struct {
	Status        string         `json:"status"`
	Collaborators []Collaborator `json:"collaborators"`
}

type JoinResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	CaptureID string `json:"capture_id"`
}

type SyncListResponse struct {
	Status   string     `json:"status"`
	Captures []SyncItem `json:"captures"`
}

type SyncUploadResponse struct {
	Status   string `json:"status"`
	Uploaded int    `json:"uploaded"`
}

// --- domain -> wire ---

func ToProfile(p *model.Profile) Profile {
	if p == nil {
		return Profile{}
	}
	return Profile{
		ID:        p.ID.String(),
		Name:      p.Name,
		Email:     p.Email,
		AvatarURL: p.AvatarURL,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt,
	}
}

func ToCapture(c model.Capture) Capture {
	return Capture{
		ID:        c.ID,
		OwnerID:   c.OwnerID.String(),
		ShareCode: c.ShareCode,
		Subject:   c.Subject,
		Date:      c.Date,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToCaptures converts list entries; the result is never nil.
func ToCaptures(in []model.CaptureSummary) []Capture {
	out := make([]Capture, 0, len(in))
	for _, s := range in {
		c := ToCapture(s.Capture)
		c.AccessType = string(s.AccessType)
		c.OwnerName = s.OwnerName
		out = append(out, c)
	}
	return out
}

func ToRoster(in []model.RosterEntry) []Roster {
	out := make([]Roster, 0, len(in))
	for _, e := range in {
		out = append(out, Roster{
			ID:      e.StudentID,
			Name:    e.StudentName,
			Present: e.Present,
			Time:    e.TimeMarked,
			Status:  e.Status,
		})
	}
	return out
}

func ToCollaborators(in []model.Collaborator) []Collaborator {
	out := make([]Collaborator, 0, len(in))
	for _, c := range in {
		out = append(out, Collaborator{
			UserID:   c.UserID.String(),
			Name:     c.Name,
			Email:    c.Email,
			Role:     string(c.Role),
			JoinedAt: c.JoinedAt,
		})
	}
	return out
}

func ToCaptureDetail(d *model.CaptureDetail) CaptureDetail {
	return CaptureDetail{
		Capture:       ToCapture(d.Capture),
		Role:          string(d.Role),
		Roster:        ToRoster(d.Roster),
		Collaborators: ToCollaborators(d.Collaborators),
	}
}

func ToSyncItems(in []model.CaptureSession) []SyncItem {
	out := make([]SyncItem, 0, len(in))
	for _, s := range in {
		out = append(out, SyncItem{
			CaptureID: s.ID,
			Subject:   s.Subject,
			Date:      s.Date,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return out
}

// ToHealth flattens checker components; redis is omitted when not configured.
func ToHealth(ok bool, components map[string]bool) HealthResponse {
	h := HealthResponse{OK: ok, DB: components["db"]}
	if r, found := components["redis"]; found {
		h.Redis = &r
	}
	return h
}

// --- wire -> domain ---

func FromRoster(in []Roster) []model.RosterEntry {
	out := make([]model.RosterEntry, 0, len(in))
	for _, r := range in {
		out = append(out, model.RosterEntry{
			StudentID:   r.ID,
			StudentName: r.Name,
			Present:     r.Present,
			TimeMarked:  r.Time,
			Status:      r.Status,
		})
	}
	return out
}

func FromCaptureCreate(r CaptureCreateRequest) model.NewCapture {
	return model.NewCapture{
		ID:        r.ID,
		Subject:   r.Subject,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Roster:    FromRoster(r.Roster),
	}
}

func FromCaptureUpdate(r CaptureUpdateRequest) model.CapturePatch {
	p := model.CapturePatch{
		Subject:   r.Subject,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
	if r.Roster != nil {
		roster := FromRoster(*r.Roster)
		p.Roster = &roster
	}
	return p
}

func FromSyncItems(in []SyncItem) []model.CaptureSession {
	out := make([]model.CaptureSession, 0, len(in))
	for _, it := range in {
		out = append(out, model.CaptureSession{
			ID:        it.CaptureID,
			Subject:   it.Subject,
			Date:      it.Date,
			StartTime: it.StartTime,
			EndTime:   it.EndTime,
		})
	}
	return out
}
