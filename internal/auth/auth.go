// Package auth builds OAuth2 token sources for the Google Drive archive.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrMissingToken reports an OAuth client credential without a cached token.
var ErrMissingToken = errors.New("oauth client credentials require a token file")

// Config points at the credential material on disk.
type Config struct {
	// CredentialsFile is a service-account key or an OAuth client secret.
	CredentialsFile string `mapstructure:"credentials_file"`
	// TokenFile caches the user token paired with an OAuth client secret.
	TokenFile string `mapstructure:"token_file"`
	// Scopes defaults to full Drive access.
	Scopes []string `mapstructure:"scopes"`
}

// TokenSource returns a token source for the configured credentials. Without a
// credentials file it falls back to Application Default Credentials.
func TokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{drive.DriveScope}
	}
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		ts, err := google.DefaultTokenSource(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return ts, nil
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode credentials file: %w", err)
	}

	if probe.Type == "service_account" {
		jwtCfg, err := google.JWTConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		return jwtCfg.TokenSource(ctx), nil
	}

	oauthCfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	if strings.TrimSpace(cfg.TokenFile) == "" {
		return nil, ErrMissingToken
	}
	token, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(token, oauthCfg.TokenSource(ctx, token)), nil
}

// LoadToken reads a cached OAuth2 token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &token, nil
}

// SaveToken writes a token so later runs can reuse it.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
