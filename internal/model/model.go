package model

import (
	"strings"
	"time"

	"sportkeeper/internal/schedule"
)

// Role is the account role reported by the remote API.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleCoach  Role = "COACH"
	RoleMember Role = "MEMBER"
)

// Roles lists the assignable roles in display order.
var Roles = []Role{RoleAdmin, RoleCoach, RoleMember}

// ParseRole is case-insensitive and rejects unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Slot is a bookable time interval as listed by GET /api/slots.
// StartAt and EndAt are local wall-clock strings (schedule.LocalLayout).
type Slot struct {
	ID            string `json:"id"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
	Capacity      int    `json:"capacity"`
	ReservedCount int    `json:"reservedCount"`
	Name          string `json:"name"`
	Description   string `json:"description"`
}

// Start parses StartAt in loc; a malformed value yields the zero time.
func (s Slot) Start(loc *time.Location) time.Time {
	t, _ := schedule.ParseLocal(s.StartAt, loc)
	return t
}

// End parses EndAt in loc; a malformed value yields the zero time.
func (s Slot) End(loc *time.Location) time.Time {
	t, _ := schedule.ParseLocal(s.EndAt, loc)
	return t
}

// Full reports whether every seat is taken. Display only; the API decides.
func (s Slot) Full() bool {
	return s.ReservedCount >= s.Capacity
}

// Activity is a discipline (BJJ, Boxing, ...) slots belong to.
type Activity struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// User is an account as listed by the admin endpoints and /api/me.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	CreatedAt   string `json:"createdAt,omitempty"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// DisplayName prefers the full name, then the name, then the email.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

// Active treats a missing flag as active.
func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// Attendees lists the student ids booked into a slot.
type Attendees struct {
	SlotID     string   `json:"slotId"`
	StudentIDs []string `json:"studentIds"`
}

// ProgressNote is a coach's note about a student.
type ProgressNote struct {
	ID               string `json:"id"`
	ActivityID       string `json:"activityId"`
	TeacherID        string `json:"teacherId"`
	StudentID        string `json:"studentId"`
	CreatedAt        string `json:"createdAt"`
	Title            string `json:"title,omitempty"`
	Comment          string `json:"comment"`
	VisibleToStudent bool   `json:"visibleToStudent"`
}
