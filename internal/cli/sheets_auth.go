package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/oauth2"

	gsheet "smartexpense/internal/sheets/google"
)

const authTimeout = 5 * time.Minute

// SheetsAuthCmd runs the installed-app OAuth flow and saves the user token
// used by the sheets export target.
type SheetsAuthCmd struct {
	Port      string `help:"Local port for the OAuth redirect, overriding OAUTH_REDIRECT_PORT."`
	TokenFile string `help:"Where to save the token, overriding GOOGLE_OAUTH_TOKEN_FILE." type:"path"`
}

func (cmd *SheetsAuthCmd) Run(kctx *kong.Context, s *Session) error {
	port := pick(cmd.Port, pick(s.Config.OAuthRedirectPort, "8085"))
	tokenFile := pick(cmd.TokenFile, pick(s.Config.GoogleOAuthTokenFile, gsheet.DefaultTokenFile))
	redirectURL := "http://localhost:" + port + "/callback"

	cfg, err := gsheet.OAuthConfig(s.Config.GoogleOAuthClientJSON, s.Config.GoogleOAuthClientFile, redirectURL)
	if err != nil {
		return err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", callbackHandler(codeCh, errCh))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	printInfof(kctx.Stdout, "Open this URL to authorize:\n%s", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(context.Background(), code)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		if err := gsheet.SaveToken(tokenFile, tok); err != nil {
			return err
		}
		printSuccess(kctx.Stdout, fmt.Sprintf("Saved token to %s", tokenFile))
		return nil
	case err := <-errCh:
		return err
	case <-time.After(authTimeout):
		return errors.New("authorization timed out")
	case <-interrupt:
		return errors.New("interrupted")
	}
}

func callbackHandler(codeCh chan<- string, errCh chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", errStr):
			default:
			}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- code:
		default:
		}
	}
}
