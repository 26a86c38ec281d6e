package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"perks/internal/services"
	gsheet "perks/internal/sheets/google"
)

const loginTimeout = 5 * time.Minute

func init() {
	rootCmd.AddCommand(sheetsCmd)
	sheetsCmd.AddCommand(sheetsLoginCmd)
	sheetsCmd.AddCommand(sheetsExportCmd)

	sheetsLoginCmd.Flags().Int("port", 8085, "local port for the OAuth redirect (http://localhost:PORT/callback)")
}

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "Google Sheets mirror of credit usage",
}

var sheetsLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize a Google account and store its token",
	Long: `Run the installed-app OAuth flow with the client from GOOGLE_OAUTH_CLIENT_FILE
(or GOOGLE_OAUTH_CLIENT_JSON) and save the token to GOOGLE_OAUTH_TOKEN_FILE
(default token.json). The worker uses it when no service account is set.`,
	Args: cobra.NoArgs,
	RunE: runSheetsLogin,
}

var sheetsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every user's credits for a year to the spreadsheet",
	Args:  cobra.NoArgs,
	RunE:  withSession(runSheetsExport),
}

func runSheetsLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := gsheet.OAuthConfigFromEnv()
	if err != nil {
		return err
	}
	if cfg == nil {
		return errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	port, _ := cmd.Flags().GetInt("port")
	addr := fmt.Sprintf("localhost:%d", port)
	cfg.RedirectURL = "http://" + addr + "/callback"

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for redirect: %w", err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "authorization failed: "+q.Get("error"), http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization failed: %s", q.Get("error")):
			default:
			}
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "Authorized. You may close this window.")
			select {
			case codeCh <- q.Get("code"):
			default:
			}
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("authorization not completed: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	path := gsheet.TokenFile()
	if err := gsheet.SaveToken(path, tok); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", path)
	return nil
}

func runSheetsExport(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return err
	}
	year := s.year()

	processor := services.NewSyncProcessor(nil, s.tracker, client, services.SyncProcessorConfig{
		BatchSize: s.cfg.SyncBatchSize,
	})
	if err := processor.ExportYear(ctx, year); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d for %d users\n", year, len(s.tracker.Catalog().UserOrder))
	return nil
}
