package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GrievanceStatus is the lifecycle state of a grievance.
type GrievanceStatus string

const (
	StatusSubmitted  GrievanceStatus = "Submitted"
	StatusInProgress GrievanceStatus = "In Progress"
	StatusResolved   GrievanceStatus = "Resolved"
	StatusClosed     GrievanceStatus = "Closed"
)

// statusTransitions defines the legal forward-only transitions. Closed is
// terminal. A status never moves back to an earlier state.
var statusTransitions = map[GrievanceStatus][]GrievanceStatus{
	StatusSubmitted:  {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed},
	StatusClosed:     {},
}

// Valid reports whether the status is one of the four known states.
func (s GrievanceStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving to next is legal from s. A
// same-status "transition" is allowed so repeated updates stay idempotent.
func (s GrievanceStatus) CanTransitionTo(next GrievanceStatus) bool {
	if s == next {
		return s.Valid()
	}
	for _, candidate := range statusTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Statuses lists the lifecycle states in order.
func Statuses() []GrievanceStatus {
	return []GrievanceStatus{StatusSubmitted, StatusInProgress, StatusResolved, StatusClosed}
}

// GrievanceCategory groups grievances by the campus function they concern.
type GrievanceCategory string

const (
	CategoryAcademic    GrievanceCategory = "Academic"
	CategoryFacility    GrievanceCategory = "Facility"
	CategoryExamination GrievanceCategory = "Examination"
	CategoryPlacement   GrievanceCategory = "Placement"
	CategoryHarassment  GrievanceCategory = "Harassment"
	CategoryOther       GrievanceCategory = "Other"
)

// Taxonomy is the closed mapping from category to its allowed subcategories.
var Taxonomy = map[GrievanceCategory][]string{
	CategoryAcademic:    {"Teaching Quality", "Syllabus", "Time-Table Clash", "Lab/Equipment"},
	CategoryFacility:    {"Classroom Infrastructure", "WiFi", "Water Supply", "Restrooms", "Canteen", "Hostel", "Library", "Parking"},
	CategoryExamination: {"Marks Related", "Exam Scheduling", "Exam Not Given", "Results Delay", "Invigilation/Conduct"},
	CategoryPlacement:   {"Eligibility Issues", "Company Opportunity", "Documentation", "Placement Cell Support", "Interview Process"},
	CategoryHarassment:  {"Workplace Harassment", "Student Harassment", "Discrimination", "Bullying", "Inappropriate Behavior"},
	CategoryOther:       {"Other"},
}

// Valid reports whether the category is part of the taxonomy.
func (c GrievanceCategory) Valid() bool {
	_, ok := Taxonomy[c]
	return ok
}

// Allows reports whether the subcategory belongs to the category's set.
func (c GrievanceCategory) Allows(subcategory string) bool {
	for _, candidate := range Taxonomy[c] {
		if candidate == subcategory {
			return true
		}
	}
	return false
}

// Categories lists the taxonomy's categories in display order.
func Categories() []GrievanceCategory {
	return []GrievanceCategory{
		CategoryAcademic,
		CategoryFacility,
		CategoryExamination,
		CategoryPlacement,
		CategoryHarassment,
		CategoryOther,
	}
}

// GrievanceDetails is the open key-value bag of category-specific form
// fields. Individual keys are not validated by the core. Stored as JSONB.
type GrievanceDetails map[string]string

// Value marshals the details bag for storage.
func (d GrievanceDetails) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan unmarshals the stored JSONB payload.
func (d *GrievanceDetails) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type %T", src)
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, d)
}

// Grievance represents a submitted complaint tracked through its lifecycle.
type Grievance struct {
	ID          string            `db:"id" json:"id"`
	GrievanceID string            `db:"grievance_id" json:"grievance_id"`
	SubmittedBy string            `db:"submitted_by" json:"submitted_by"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description"`
	Category    GrievanceCategory `db:"category" json:"category"`
	Subcategory string            `db:"subcategory" json:"subcategory"`
	Details     GrievanceDetails  `db:"details" json:"details,omitempty"`
	Status      GrievanceStatus   `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
	ResolvedAt  *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
}

// SubmitterInfo carries the display attributes joined for admin listings.
type SubmitterInfo struct {
	FullName     string `db:"full_name" json:"full_name"`
	UserIDNumber string `db:"user_id_number" json:"user_id_number"`
	Department   string `db:"department" json:"department"`
}

// GrievanceWithSubmitter is a grievance annotated with submitter attributes.
type GrievanceWithSubmitter struct {
	Grievance
	Submitter *SubmitterInfo `json:"submitter,omitempty"`
}

// GrievanceFilter captures the narrowing predicates for listings. SubmittedBy
// is set by the visibility filter, never from request input.
type GrievanceFilter struct {
	SubmittedBy string
	Category    *GrievanceCategory
	Status      *GrievanceStatus
	Search      string
	Page        int
	PageSize    int
}

// GrievanceStatusChange describes a lifecycle event for notification sinks.
type GrievanceStatusChange struct {
	GrievanceID string          `json:"grievance_id"`
	DisplayCode string          `json:"display_code"`
	From        GrievanceStatus `json:"from"`
	To          GrievanceStatus `json:"to"`
	ActorID     string          `json:"actor_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
