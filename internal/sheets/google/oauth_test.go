package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"smartexpense/internal/log"
)

const testOAuthClient = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(testOAuthClient, "", "http://localhost:8085/callback")
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "test" {
		t.Errorf("ClientID = %q, want test", cfg.ClientID)
	}
	if cfg.RedirectURL != "http://localhost:8085/callback" {
		t.Errorf("RedirectURL = %q", cfg.RedirectURL)
	}

	if _, err := OAuthConfig("", "", ""); err == nil {
		t.Error("expected error without client credentials")
	}
	if _, err := OAuthConfig("", filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Error("expected error for missing client file")
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.RefreshToken != "refresh" || !got.Expiry.Equal(tok.Expiry) {
		t.Errorf("token = %+v", got)
	}
}

func TestNewWithOAuthToken(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	cfg := Config{
		SpreadsheetID:   "sheet-id",
		OAuthClientJSON: testOAuthClient,
		OAuthTokenFile:  tokenFile,
	}

	_, err := New(context.Background(), cfg, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "sheets-auth") {
		t.Fatalf("err = %v, want hint to authorize first", err)
	}

	if err := SaveToken(tokenFile, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	x, err := New(context.Background(), cfg, log.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if x.Name() != "sheets:sheet-id/Expenses" {
		t.Errorf("Name() = %q", x.Name())
	}
}
