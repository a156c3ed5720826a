package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var ErrNoIDToken = errors.New("no id_token in token response")

// PopupConfig configures the federated popup flow.
type PopupConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// CodeExchanger builds consent URLs and trades authorization codes for a
// Google ID token.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	ExchangeIDToken(ctx context.Context, code string) (string, error)
}

// GooglePopup is the OAuth2 authorization-code flow against Google.
type GooglePopup struct {
	config *oauth2.Config
}

// NewGooglePopup returns nil when the flow is not configured.
func NewGooglePopup(cfg PopupConfig) *GooglePopup {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil
	}
	return &GooglePopup{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (g *GooglePopup) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *GooglePopup) ExchangeIDToken(ctx context.Context, code string) (string, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}
