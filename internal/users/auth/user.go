// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the identity lifecycle of Tourly.

It turns an anonymous request into a durable, role-bearing, verified account and
proves credentials afterwards.

# Architecture

  - Identity Drafts: pending registrations in Redis, destroyed on promotion or expiry.
  - Identity Records: confirmed accounts in PostgreSQL (users.account).
  - One-Time-Code Engine: short-lived numeric codes for registration, password
    reset and email change, stored only as keyed digests.
  - Federation: Google ID tokens mapped to a local account (create-or-link).
  - Sessions: 1-day HS256 tokens carrying the principal id; authorization always
    re-reads the record (see [PrincipalResolver]).
*/
package auth

import (
	"time"

	"github.com/taibuivan/tourly/internal/platform/sec"
)

// # Domain Entities

// Provider identifies who proves an account's credentials.
type Provider string

const (
	// ProviderLocal accounts sign in with an email and password.
	ProviderLocal Provider = "local"

	// ProviderGoogle accounts sign in with a Google ID token and have no password.
	ProviderGoogle Provider = "google"
)

// User is an Identity Record: a confirmed account.
//
// One-time code state is kept by the store and never leaves it.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         sec.UserRole `json:"role"`
	IsVerified   bool         `json:"isVerified"`

	// Profile
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Birthday       *time.Time `json:"birthday,omitempty"`
	Gender         string     `json:"gender,omitempty"`
	Country        string     `json:"country,omitempty"`
	Language       string     `json:"language,omitempty"`
	ProfilePicture string     `json:"profilePicture,omitempty"`

	// Federation
	Provider        Provider `json:"provider"`
	ProviderSubject string   `json:"-"`

	// Flags
	ProfileCompleted bool `json:"profileCompleted"`
	TourCompleted    bool `json:"tourCompleted"`
	HideWelcomeModal bool `json:"hideWelcomeModal"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsFederated reports whether a third party proves this account's credentials.
func (user *User) IsFederated() bool {
	return user.Provider != ProviderLocal
}

// Principal returns the request identity for this record.
func (user *User) Principal() *sec.Principal {
	return &sec.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// MissingProfileFields lists the required profile fields that are still empty,
// using their JSON names.
func (user *User) MissingProfileFields() []string {
	var missing []string
	if user.FirstName == "" {
		missing = append(missing, FieldFirstName)
	}
	if user.LastName == "" {
		missing = append(missing, FieldLastName)
	}
	if user.Birthday == nil {
		missing = append(missing, FieldBirthday)
	}
	if user.Gender == "" {
		missing = append(missing, FieldGender)
	}
	if user.Country == "" {
		missing = append(missing, FieldCountry)
	}
	return missing
}

// Draft is an Identity Draft: a registration awaiting its one-time code.
type Draft struct {
	PendingID    string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CodeDigest   string
	ExpiresAt    time.Time
}

// RecordCode is a one-time code attached to an Identity Record.
type RecordCode struct {
	Purpose   Purpose
	Digest    string
	Target    string // email change only
	ExpiresAt time.Time
}

// # Field Identifiers

// JSON field names used in validation details.
const (
	FieldFirstName        = "firstName"
	FieldLastName         = "lastName"
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldNewPassword      = "newPassword"
	FieldNewEmail         = "newEmail"
	FieldOTP              = "otp"
	FieldToken            = "token"
	FieldBirthday         = "birthday"
	FieldGender           = "gender"
	FieldCountry          = "country"
	FieldLanguage         = "language"
	FieldProfilePicture   = "profilePicture"
	FieldRole             = "role"
	FieldConfirmationText = "confirmationText"
)

// # Input Constraints

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxNameLength     = 100
	MaxEmailLength    = 254
)
