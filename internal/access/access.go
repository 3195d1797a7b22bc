// Package access maps account roles to the actions the console offers.
//
// These checks only decide what the console shows and which commands it
// attempts. The remote API re-validates every request and is the authority.
package access

import (
	"errors"
	"fmt"

	"sportkeeper/internal/model"
)

// Capability is a single console action.
type Capability uint8

const (
	BookSlots Capability = iota + 1
	ViewAttendees
	ManageSlots
	ManageUsers
	ManageActivities
	ViewOwnNotes
)

// All lists every capability in declaration order.
var All = []Capability{BookSlots, ViewAttendees, ManageSlots, ManageUsers, ManageActivities, ViewOwnNotes}

func (c Capability) String() string {
	switch c {
	case BookSlots:
		return "book_slots"
	case ViewAttendees:
		return "view_attendees"
	case ManageSlots:
		return "manage_slots"
	case ManageUsers:
		return "manage_users"
	case ManageActivities:
		return "manage_activities"
	case ViewOwnNotes:
		return "view_own_notes"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// ErrForbidden is returned by Require when the role lacks a capability.
var ErrForbidden = errors.New("access: forbidden")

// Set is a bitset of capabilities.
type Set uint16

func setOf(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= 1 << c
	}
	return s
}

func (s Set) Has(c Capability) bool { return s&(1<<c) != 0 }

var byRole = map[model.Role]Set{
	model.RoleMember: setOf(BookSlots, ViewOwnNotes),
	model.RoleCoach:  setOf(BookSlots, ViewAttendees, ManageSlots, ViewOwnNotes),
	model.RoleAdmin:  setOf(BookSlots, ViewAttendees, ManageSlots, ManageUsers, ManageActivities),
}

// For returns the capability set of role; unknown roles get none.
func For(role model.Role) Set {
	return byRole[role]
}

// Require fails with ErrForbidden when role lacks c.
func Require(role model.Role, c Capability) error {
	if For(role).Has(c) {
		return nil
	}
	if role == "" {
		role = "anonymous"
	}
	return fmt.Errorf("%w: role %s cannot %s", ErrForbidden, role, c)
}

// CanDeleteUser refuses self-deletion.
func CanDeleteUser(me model.User, target string) error {
	if err := Require(me.Role, ManageUsers); err != nil {
		return err
	}
	if me.ID != "" && me.ID == target {
		return fmt.Errorf("%w: you cannot delete your own user", ErrForbidden)
	}
	return nil
}
