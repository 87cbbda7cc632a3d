package models

import (
	"strings"
	"time"

	dErrors "proconnect/pkg/domain-errors"
)

// Consultant is the offering side of the marketplace.
//
// Invariants:
//   - FullName and Email are non-empty
//   - A soft-deleted consultant (DeletedAt != nil) does not resolve in the
//     directory and cannot participate in new connections
type Consultant struct {
	ID             int64      `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Specialization string     `json:"specialization"`
	HourlyRate     float64    `json:"hourly_rate"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func NewConsultant(fullName, email, specialization string, hourlyRate float64, now time.Time) (*Consultant, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "consultant full name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "consultant email cannot be empty")
	}
	if hourlyRate < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "hourly rate cannot be negative")
	}
	return &Consultant{
		FullName:       fullName,
		Email:          email,
		Specialization: strings.TrimSpace(specialization),
		HourlyRate:     hourlyRate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Consultant) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Display projects the consultant onto the counterpart enrichment payload.
func (c *Consultant) Display() *DisplayInfo {
	return &DisplayInfo{
		FullName:       c.FullName,
		Email:          c.Email,
		Specialization: c.Specialization,
	}
}

// Client is the hiring side of the marketplace.
//
// Invariants:
//   - FullName and Email are non-empty
//   - A soft-deleted client (DeletedAt != nil) does not resolve in the
//     directory and cannot participate in new connections
type Client struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	CompanyName string     `json:"company_name"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func NewClient(fullName, email, companyName string, now time.Time) (*Client, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "client full name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "client email cannot be empty")
	}
	return &Client{
		FullName:    fullName,
		Email:       email,
		CompanyName: strings.TrimSpace(companyName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *Client) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Display projects the client onto the counterpart enrichment payload.
func (c *Client) Display() *DisplayInfo {
	return &DisplayInfo{
		FullName:    c.FullName,
		Email:       c.Email,
		CompanyName: c.CompanyName,
	}
}

// DisplayInfo carries the counterpart attributes attached to connection
// listings. Kind-specific fields are empty for the other kind; a zero
// DisplayInfo is what listings degrade to when the lookup fails.
type DisplayInfo struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Specialization string `json:"specialization,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
}
