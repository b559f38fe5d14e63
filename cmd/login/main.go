// Command login signs in to the gateway from a terminal. It prints (and tries
// to open) the provider login page, receives the redirect on a loopback
// listener and saves the session token for later runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jrsteele09/go-oidc-gateway/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const loginTimeout = 5 * time.Minute

const successPage = `<!doctype html><html><body><h2>Signed in</h2><p>You can close this window and return to the terminal.</p></body></html>`

func main() {
	apiURL := flag.String("api", "http://localhost:5000", "gateway base URL")
	listen := flag.String("listen", "127.0.0.1:5173", "loopback address the provider redirects to (must match the gateway redirect URI)")
	storePath := flag.String("store", defaultStorePath(), "file holding the saved session")
	logout := flag.Bool("logout", false, "sign out and forget the saved session")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *apiURL, *listen, *storePath, *logout); err != nil {
		fmt.Fprintf(os.Stderr, "login: %s\n", err)
		os.Exit(1)
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "oidc-gateway-session.json"
	}
	return filepath.Join(dir, "oidc-gateway", "session.json")
}

func run(ctx context.Context, apiURL, listen, storePath string, logout bool) error {
	api := client.NewAPIClient(apiURL)
	nav := client.NavigatorFunc(navigate)
	store := client.NewAuthStore(client.NewFileStorage(storePath), client.NewMemoryStorage(), api, nav)

	if logout {
		return signOut(ctx, api, store)
	}

	if store.IsAuthenticated() {
		user, err := api.Me(ctx, store.Token())
		if err == nil {
			printUser(user)
			return nil
		}
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		// The gateway no longer accepts the token, sign in again
		if err := store.Logout(); err != nil {
			return err
		}
	}

	if err := signIn(ctx, api, store, nav, listen); err != nil {
		return err
	}

	user, err := api.Me(ctx, store.Token())
	if err != nil {
		return err
	}
	printUser(user)
	return nil
}

func signIn(ctx context.Context, api *client.APIClient, store *client.AuthStore, nav client.Navigator, listen string) error {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	defer listener.Close()

	handler := client.NewCallbackHandler(store, api, nav)
	outcomeCh := make(chan client.Outcome, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		outcome := handler.Handle(r.Context(), r.URL.Query())
		if outcome.State == client.StateDone {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(successPage))
		} else {
			http.Error(w, "Authentication failed: "+outcome.Message, http.StatusUnauthorized)
		}
		select {
		case outcomeCh <- outcome:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	srvCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()
	defer srv.Close()

	if err := store.Login(ctx); err != nil {
		return err
	}

	select {
	case outcome := <-outcomeCh:
		if outcome.State != client.StateDone {
			return fmt.Errorf("%s: %w", outcome.Message, outcome.Err)
		}
		return nil
	case err := <-srvCh:
		return fmt.Errorf("callback listener failed: %w", err)
	case <-ctx.Done():
		return errors.New("interrupted")
	case <-time.After(loginTimeout):
		return errors.New("timed out waiting for the provider redirect")
	}
}

func signOut(ctx context.Context, api *client.APIClient, store *client.AuthStore) error {
	resp, err := api.Logout(ctx, store.Token())
	if err != nil {
		log.Warn().Err(err).Msg("gateway logout failed")
	}
	if err := store.Logout(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	if resp != nil && resp.LogoutURL != "" {
		fmt.Printf("End the provider session at:\n\n    %s\n", resp.LogoutURL)
	}
	return nil
}

// navigate opens absolute URLs in the browser. In-app paths need no action in
// a terminal.
func navigate(target string) error {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Complete the login via your OIDC provider. Launching browser to:\n\n    %s\n\n", target)
	if err := openURL(target); err != nil {
		fmt.Fprintf(os.Stderr, "Error attempting to automatically open browser: '%s'.\nPlease visit the authorization URL manually.\n", err)
	}
	return nil
}

func printUser(user *client.User) {
	fmt.Printf("Signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Subject)
}

// openURL opens the specified URL in the default browser of the user.
func openURL(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd.exe"
		args = []string{"/c", "start"}
		url = strings.ReplaceAll(url, "&", "^&")
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
