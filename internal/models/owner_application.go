package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the review state of a stall owner application
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "Pending"
	ApplicationStatusApproved ApplicationStatus = "Approved"
	ApplicationStatusRejected ApplicationStatus = "Rejected"
)

// StallOwnerApplication is a request to be granted the stall owner role
type StallOwnerApplication struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	DocumentURL     NullString        `json:"document_url,omitempty" db:"document_url"`
	AdditionalNotes NullString        `json:"additional_notes,omitempty" db:"additional_notes"`
	Status          ApplicationStatus `json:"status" db:"status"`
	SubmittedAt     time.Time         `json:"submitted_at" db:"submitted_at"`
	ReviewedAt      NullTime          `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy      NullString        `json:"reviewed_by,omitempty" db:"reviewed_by"`
}

// OwnerApplicationListItem adds the applicant's identity for the admin queue
type OwnerApplicationListItem struct {
	StallOwnerApplication
	FullName    string     `json:"full_name" db:"full_name"`
	Email       string     `json:"email" db:"email"`
	CompanyName NullString `json:"company_name,omitempty" db:"company_name"`
}
