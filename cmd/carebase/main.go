package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/carebase/pkg/api/client"
	"github.com/splax/carebase/pkg/config"
	jwtpkg "github.com/splax/carebase/pkg/jwt"
)

type cliConfig struct {
	APIBaseURL     string    `json:"api_base_url"`
	SessionToken   string    `json:"session_token"`
	SessionExpires time.Time `json:"session_expires,omitempty"`
	UserEmail      string    `json:"user_email,omitempty"`
}

const defaultAPIBase = "http://localhost:4000"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "whoami":
		err = commandWhoami(args)
	case "health":
		err = commandHealth(args)
	case "token":
		err = commandToken(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	name := fs.String("name", "", "Display name; registers the account when the email is new")
	guest := fs.Bool("guest", false, "Start a guest session instead")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	req := apiclient.LoginRequest{IsGuest: *guest}
	if !*guest {
		if strings.TrimSpace(*email) == "" {
			return errors.New("--email is required (or use --guest)")
		}
		secret := *password
		if secret == "" {
			fmt.Print("Password: ")
			bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Print("\n")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			secret = string(bytes)
		}
		req.Email = strings.TrimSpace(*email)
		req.Password = secret
		req.Name = strings.TrimSpace(*name)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := newAPIClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	session, err := client.Login(ctx, req)
	if err != nil {
		var apiErr apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return errors.New("no account for that email; pass --name to register")
		}
		return err
	}
	cfg.SessionToken = session.Token
	cfg.SessionExpires = session.ExpiresAt
	cfg.UserEmail = session.User.Email
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", describeUser(session.User), session.User.Role)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.SessionToken) != "" {
		client, err := newAPIClient(cfg.APIBaseURL)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := client.Logout(ctx, cfg.SessionToken); err != nil {
			fmt.Fprintf(os.Stderr, "warning: server logout failed: %v\n", err)
		}
	}
	cfg.SessionToken = ""
	cfg.SessionExpires = time.Time{}
	cfg.UserEmail = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token := strings.TrimSpace(cfg.SessionToken)
	if token == "" {
		return errors.New("please login first using 'carebase login'")
	}
	client, err := newAPIClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.Me(ctx, token)
	if errors.Is(err, apiclient.ErrNotAuthenticated) {
		return errors.New("session expired; please login again")
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", user.ID, describeUser(*user), user.Role)
	if !cfg.SessionExpires.IsZero() {
		fmt.Printf("session expires %s\n", cfg.SessionExpires.Local().Format(time.RFC1123))
	}
	return nil
}

func commandHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := newAPIClient(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

// commandToken mints an internal service token for callers that still
// identify users with the X-User-ID header.
func commandToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	service := fs.String("service", "", "Calling service name")
	secret := fs.String("secret", "", "Signing secret (default $INTERNAL_SERVICE_SECRET)")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default $INTERNAL_TOKEN_TTL_MIN minutes)")
	fs.Parse(args)

	if strings.TrimSpace(*service) == "" {
		return errors.New("--service is required")
	}
	apiCfg := config.LoadAPIConfig()
	key := strings.TrimSpace(*secret)
	if key == "" {
		key = apiCfg.InternalServiceSecret
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = apiCfg.InternalTokenTTL
	}
	if key == "" {
		return errors.New("signing secret required: pass --secret or set INTERNAL_SERVICE_SECRET")
	}
	token, err := jwtpkg.GenerateServiceToken(strings.TrimSpace(*service), key, lifetime)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// newAPIClient honours SESSION_COOKIE_NAME so the CLI finds the cookie the
// API actually sets.
func newAPIClient(base string) (*apiclient.Client, error) {
	return apiclient.New(base, apiclient.WithCookieName(config.LoadAPIConfig().SessionCookieName))
}

func describeUser(u apiclient.User) string {
	if u.Name != "" && u.Email != "" {
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{APIBaseURL: defaultAPIBase}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("CAREBASE_CONFIG")); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "carebase", "config.json"), nil
}

func printUsage() {
	fmt.Printf("carebase CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	carebase login --email user@example.com [--password secret] [--name "Full Name"] [--api http://localhost:4000]
	carebase login --guest
	carebase logout
	carebase whoami
	carebase health [--api http://localhost:4000]
	carebase token --service <name> [--ttl 1h] [--secret s]
	carebase version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
