// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// # Federated Identity

// FederatedIdentity is the verified content of a third-party identity token.
type FederatedIdentity struct {
	Provider   Provider
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}

// IdentityVerifier verifies an opaque third-party identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*FederatedIdentity, error)
}

// ErrUnverifiedEmail is returned for identity tokens whose email the provider has not verified.
var ErrUnverifiedEmail = errors.New("federation: email not verified by provider")

// GoogleVerifier validates Google ID tokens against Google's public keys.
//
// Signature, issuer, expiry and audience are checked by [idtoken.Validator];
// the audience must equal the configured OAuth client id.
type GoogleVerifier struct {
	validator *idtoken.Validator
	clientID  string
}

// NewGoogleVerifier creates a verifier for tokens issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("federation: failed to create google validator: %w", err)
	}
	return &GoogleVerifier{validator: validator, clientID: clientID}, nil
}

// Verify implements [IdentityVerifier].
func (verifier *GoogleVerifier) Verify(ctx context.Context, token string) (*FederatedIdentity, error) {
	payload, err := verifier.validator.Validate(ctx, token, verifier.clientID)
	if err != nil {
		return nil, fmt.Errorf("federation: google token rejected: %w", err)
	}
	return identityFromGooglePayload(payload)
}

// identityFromGooglePayload extracts the account attributes from validated claims.
func identityFromGooglePayload(payload *idtoken.Payload) (*FederatedIdentity, error) {
	email, _ := payload.Claims["email"].(string)
	if email == "" || payload.Subject == "" {
		return nil, errors.New("federation: google token lacks email or subject")
	}

	// email_verified is a bool in ID tokens, but some libraries emit it as a string.
	switch verified := payload.Claims["email_verified"].(type) {
	case bool:
		if !verified {
			return nil, ErrUnverifiedEmail
		}
	case string:
		if verified != "true" {
			return nil, ErrUnverifiedEmail
		}
	default:
		return nil, ErrUnverifiedEmail
	}

	identity := &FederatedIdentity{
		Provider: ProviderGoogle,
		Subject:  payload.Subject,
		Email:    email,
	}
	identity.GivenName, _ = payload.Claims["given_name"].(string)
	identity.FamilyName, _ = payload.Claims["family_name"].(string)
	identity.AvatarURL, _ = payload.Claims["picture"].(string)

	// Fall back to splitting the display name.
	if identity.GivenName == "" {
		if name, _ := payload.Claims["name"].(string); name != "" {
			given, family, _ := strings.Cut(strings.TrimSpace(name), " ")
			identity.GivenName, identity.FamilyName = given, strings.TrimSpace(family)
		}
	}

	return identity, nil
}
