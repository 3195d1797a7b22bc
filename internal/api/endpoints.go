package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"sportkeeper/internal/model"
)

// Credentials is the login / register body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, Credentials{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("api: login response carried no token")
	}
	return out.Token, nil
}

// Register creates an account. Callers typically Login afterwards.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", nil, Credentials{Email: email, Password: password}, nil)
}

// Me returns the account the client's token belongs to.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/api/me", nil, nil, &u)
	return u, err
}

// ListSlots returns every slot the API exposes.
func (c *Client) ListSlots(ctx context.Context) ([]model.Slot, error) {
	var out []model.Slot
	err := c.do(ctx, http.MethodGet, "/api/slots", nil, nil, &out)
	return out, err
}

// SlotRequest is the creation body for POST /api/admin/slots. StartAt and
// EndAt use schedule.LocalLayout; Activity is the full activity object.
type SlotRequest struct {
	StartAt     string         `json:"startAt"`
	EndAt       string         `json:"endAt"`
	Capacity    int            `json:"capacity"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CoachID     string         `json:"coachId"`
	Activity    model.Activity `json:"activity"`
}

// CreateSlot submits a single slot.
func (c *Client) CreateSlot(ctx context.Context, req SlotRequest) (model.Slot, error) {
	var out model.Slot
	err := c.do(ctx, http.MethodPost, "/api/admin/slots", nil, req, &out)
	return out, err
}

// UpdateSlotCapacity changes a slot's capacity.
func (c *Client) UpdateSlotCapacity(ctx context.Context, id string, capacity int) error {
	body := struct {
		Capacity int `json:"capacity"`
	}{capacity}
	return c.do(ctx, http.MethodPut, "/api/admin/slots/"+escapeID(id), nil, body, nil)
}

func (c *Client) DeleteSlot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/slots/"+escapeID(id), nil, nil, nil)
}

// Reserve books slotID for email.
func (c *Client) Reserve(ctx context.Context, slotID, email string) error {
	body := struct {
		TimeSlotID string `json:"timeSlotId"`
		Email      string `json:"email"`
	}{slotID, email}
	return c.do(ctx, http.MethodPost, "/api/reservations", nil, body, nil)
}

// Attendees lists the students booked into slotID (coach view).
func (c *Client) Attendees(ctx context.Context, slotID string) (model.Attendees, error) {
	var out model.Attendees
	err := c.do(ctx, http.MethodGet, "/api/teacher/slots/"+escapeID(slotID)+"/attendees", nil, nil, &out)
	return out, err
}

// ListUsers lists accounts, optionally restricted to one role.
func (c *Client) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	var q url.Values
	if role != "" {
		q = url.Values{"role": {string(role)}}
	}
	var out []model.User
	err := c.do(ctx, http.MethodGet, "/api/admin/users", q, nil, &out)
	return out, err
}

func (c *Client) SetUserRole(ctx context.Context, id string, role model.Role) error {
	body := struct {
		Role model.Role `json:"role"`
	}{role}
	return c.do(ctx, http.MethodPatch, "/api/admin/users/"+escapeID(id)+"/role", nil, body, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/users/"+escapeID(id), nil, nil, nil)
}

// ActivityInput is the create/update body for activities.
type ActivityInput struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (c *Client) ListActivities(ctx context.Context) ([]model.Activity, error) {
	var out []model.Activity
	err := c.do(ctx, http.MethodGet, "/api/activities", nil, nil, &out)
	return out, err
}

// CreateActivity returns the new activity's id.
func (c *Client) CreateActivity(ctx context.Context, in ActivityInput) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/activities", nil, in, &out)
	return out.ID, err
}

func (c *Client) UpdateActivity(ctx context.Context, id string, in ActivityInput) error {
	return c.do(ctx, http.MethodPut, "/api/admin/activities/"+escapeID(id), nil, in, nil)
}

// MyNotes returns the progress notes of the authenticated student.
func (c *Client) MyNotes(ctx context.Context) ([]model.ProgressNote, error) {
	var out []model.ProgressNote
	err := c.do(ctx, http.MethodGet, "/api/student/me/notes", nil, nil, &out)
	return out, err
}
