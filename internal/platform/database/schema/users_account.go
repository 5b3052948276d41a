// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns queried outside generated projections.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table            string
	ID               string
	Email            string
	Password         string
	Role             string
	IsVerified       string
	FirstName        string
	LastName         string
	Birthday         string
	Gender           string
	Country          string
	Language         string
	ProfilePicture   string
	Provider         string
	ProviderSubject  string
	ProfileCompleted string
	TourCompleted    string
	HideWelcomeModal string
	OTPHash          string
	OTPPurpose       string
	OTPTarget        string
	OTPExpiresAt     string
	CreatedAt        string
	UpdatedAt        string

	// EmailKey is the unique constraint on Email.
	EmailKey string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:            "users.account",
	ID:               "id",
	Email:            "email",
	Password:         "passwordhash",
	Role:             "role",
	IsVerified:       "isverified",
	FirstName:        "firstname",
	LastName:         "lastname",
	Birthday:         "birthday",
	Gender:           "gender",
	Country:          "country",
	Language:         "language",
	ProfilePicture:   "profilepicture",
	Provider:         "provider",
	ProviderSubject:  "providersubject",
	ProfileCompleted: "profilecompleted",
	TourCompleted:    "tourcompleted",
	HideWelcomeModal: "hidewelcomemodal",
	OTPHash:          "otphash",
	OTPPurpose:       "otppurpose",
	OTPTarget:        "otptarget",
	OTPExpiresAt:     "otpexpiresat",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
	EmailKey:         "account_email_key",
}
