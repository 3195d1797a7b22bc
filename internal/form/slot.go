package form

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sportkeeper/internal/api"
	"sportkeeper/internal/model"
	"sportkeeper/internal/schedule"
)

var (
	ErrNoOccurrences    = errors.New("fill in start/end correctly")
	ErrNoCoach          = errors.New("select a coach")
	ErrNoActivity       = errors.New("select an activity")
	ErrActivityNotFound = errors.New("activity not found")
)

// SlotForm is the admin "create slot" form. Times are local wall-clock
// strings as typed into datetime-local / date inputs.
type SlotForm struct {
	ActivityID   string `json:"activityId"`
	CoachID      string `json:"coachId"`
	StartAt      string `json:"startAt"`
	EndAt        string `json:"endAt"`
	Capacity     int    `json:"capacity" validate:"gte=1,lte=10000"`
	Name         string `json:"name" validate:"max=120"`
	Description  string `json:"description" validate:"max=4000"`
	Repeat       string `json:"repeat" validate:"omitempty,oneof=NONE DAILY WEEKLY"`
	Until        string `json:"until" validate:"omitempty,datetime=2006-01-02"`
	Weekdays     []int  `json:"weekdays" validate:"omitempty,dive,min=1,max=7"`
	SplitMinutes int    `json:"splitMinutes"`
}

// Normalize trims free text and upper-cases the repeat mode.
func (f *SlotForm) Normalize() {
	f.ActivityID = strings.TrimSpace(f.ActivityID)
	f.CoachID = strings.TrimSpace(f.CoachID)
	f.StartAt = strings.TrimSpace(f.StartAt)
	f.EndAt = strings.TrimSpace(f.EndAt)
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Repeat = strings.ToUpper(strings.TrimSpace(f.Repeat))
	f.Until = strings.TrimSpace(f.Until)
}

// Validate checks field shapes (not business rules, which the API owns).
func (f SlotForm) Validate() error {
	return validateStruct(f)
}

// Rule builds the recurrence rule. horizonDays applies when Until is empty.
func (f SlotForm) Rule(loc *time.Location, horizonDays int) (schedule.Rule, error) {
	freq, err := schedule.ParseFrequency(f.Repeat)
	if err != nil {
		return schedule.Rule{}, err
	}
	rule := schedule.Rule{
		Frequency:    freq,
		Weekdays:     f.Weekdays,
		SplitMinutes: f.SplitMinutes,
		HorizonDays:  horizonDays,
	}
	if f.Until != "" {
		until, err := schedule.ParseLocal(f.Until, loc)
		if err != nil {
			verr := &ValidationError{}
			verr.add("until", "until must be a date (YYYY-MM-DD)")
			return schedule.Rule{}, verr
		}
		rule.Until = until
	}
	return rule, nil
}

// Occurrences validates the form and expands it. An unparseable or empty
// interval yields ErrNoOccurrences; a series over the occurrence cap is a
// *ValidationError.
func (f SlotForm) Occurrences(loc *time.Location, horizonDays int) ([]schedule.Interval, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rule, err := f.Rule(loc, horizonDays)
	if err != nil {
		return nil, err
	}
	if f.StartAt == "" || f.EndAt == "" {
		return nil, ErrNoOccurrences
	}
	base, err := schedule.ParseInterval(f.StartAt, f.EndAt, loc)
	if err != nil {
		return nil, ErrNoOccurrences
	}
	res := schedule.ExpandSeries(base, rule)
	if res.Truncated {
		field := "until"
		if rule.Frequency == schedule.FrequencyNone {
			field = "splitMinutes"
		}
		verr := &ValidationError{}
		verr.add(field, fmt.Sprintf("series exceeds %d occurrences; shorten the period or use a longer split", rule.MaxOccurrencesOrDefault()))
		return nil, verr
	}
	if len(res.Intervals) == 0 {
		return nil, ErrNoOccurrences
	}
	return res.Intervals, nil
}

// Prepare expands the form and resolves the activity, returning the request
// template and the occurrences to submit.
func (f SlotForm) Prepare(loc *time.Location, horizonDays int, activities []model.Activity) (api.SlotRequest, []schedule.Interval, error) {
	occs, err := f.Occurrences(loc, horizonDays)
	if err != nil {
		return api.SlotRequest{}, nil, err
	}
	tmpl, err := f.Template(activities)
	if err != nil {
		return api.SlotRequest{}, nil, err
	}
	return tmpl, occs, nil
}

// Template checks coach and activity and builds the request shared by every
// occurrence. StartAt/EndAt are left empty.
func (f SlotForm) Template(activities []model.Activity) (api.SlotRequest, error) {
	if f.CoachID == "" {
		return api.SlotRequest{}, ErrNoCoach
	}
	if f.ActivityID == "" {
		return api.SlotRequest{}, ErrNoActivity
	}
	activity, ok := model.FindActivity(activities, f.ActivityID)
	if !ok {
		return api.SlotRequest{}, ErrActivityNotFound
	}
	return api.SlotRequest{
		Capacity:    f.Capacity,
		Name:        f.Name,
		Description: f.Description,
		CoachID:     f.CoachID,
		Activity:    activity,
	}, nil
}

// ActivityForm is the create / edit activity form.
type ActivityForm struct {
	Code   string `json:"code" validate:"required,max=32"`
	Name   string `json:"name" validate:"required,max=120"`
	Active bool   `json:"active"`
}

// Input normalizes the code and trims the name.
func (f ActivityForm) Input() (api.ActivityInput, error) {
	in := api.ActivityInput{
		Code:   model.NormalizeActivityCode(f.Code),
		Name:   strings.TrimSpace(f.Name),
		Active: f.Active,
	}
	if err := validateStruct(ActivityForm{Code: in.Code, Name: in.Name, Active: in.Active}); err != nil {
		return api.ActivityInput{}, err
	}
	return in, nil
}
