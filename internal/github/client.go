package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Environment variables consulted when the matching ClientConfig field is empty.
const (
	EnvToken         = "GITHUB_TOKEN"
	EnvAPIURL        = "GITHUB_API_URL"
	EnvAppID         = "GH_APP_ID"
	EnvAppKey        = "GH_APP_PRIVATE_KEY"
	EnvAppKeyPath    = "GH_APP_PRIVATE_KEY_PATH"
	defaultUserAgent = "gitsituation"
)

// ClientConfig holds the configuration for creating a GitHub API client.
type ClientConfig struct {
	// Token is a GitHub personal access token or GITHUB_TOKEN.
	Token string

	// AppID is the GitHub App ID for app authentication.
	AppID int64

	// AppKey is the GitHub App private key PEM content.
	AppKey string

	// AppKeyPath is the path to a GitHub App private key PEM file.
	AppKeyPath string

	// BaseURL is a custom GitHub API base URL for GitHub Enterprise.
	BaseURL string

	// Owner is the repository owner, used to find the App installation.
	Owner string

	// Context bounds the installation lookup and token refreshes.
	Context context.Context
}

// NewClient creates an authenticated GitHub API client. Credentials are
// tried in order: token, then App ID with key content or key file. Each
// field falls back to its environment variable when empty.
func NewClient(cfg ClientConfig) (*gh.Client, error) {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	baseURL := ResolveBaseURL(cfg.BaseURL)

	if token := resolveString(cfg.Token, EnvToken); token != "" {
		logger.Debug().Str("auth", "token").Msg("creating GitHub client")
		httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		return newClient(httpClient, baseURL)
	}

	appID, err := resolveAppID(cfg.AppID)
	if err != nil {
		return nil, err
	}
	if appID != 0 {
		key, err := resolveAppKey(cfg.AppKey, cfg.AppKeyPath)
		if err != nil {
			return nil, err
		}
		if key != nil {
			logger.Debug().Str("auth", "app").Int64("app_id", appID).Msg("creating GitHub client")
			return newAppClient(ctx, appID, key, cfg.Owner, baseURL)
		}
	}

	return nil, errors.New("no GitHub authentication provided: set GITHUB_TOKEN, use --token, or provide --github-app-id with --github-app-key or --github-app-key-path")
}

// newClient wraps an HTTP client, pointing it at baseURL when set.
func newClient(httpClient *http.Client, baseURL string) (*gh.Client, error) {
	client := gh.NewClient(httpClient)
	client.UserAgent = defaultUserAgent
	if baseURL == "" {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("setting enterprise URL: %w", err)
	}
	return client, nil
}

// newAppClient authenticates as the App to find the owner's installation,
// then returns a client authenticated as that installation.
func newAppClient(ctx context.Context, appID int64, key []byte, owner, baseURL string) (*gh.Client, error) {
	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, key)
	if err != nil {
		return nil, fmt.Errorf("creating GitHub App transport: %w", err)
	}
	if baseURL != "" {
		appTransport.BaseURL = baseURL
	}
	appClient, err := newClient(&http.Client{Transport: appTransport}, baseURL)
	if err != nil {
		return nil, err
	}

	installationID, err := findInstallation(ctx, appClient, owner)
	if err != nil {
		return nil, err
	}

	installTransport, err := ghinstallation.New(http.DefaultTransport, appID, installationID, key)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	if baseURL != "" {
		installTransport.BaseURL = baseURL
	}
	return newClient(&http.Client{Transport: installTransport}, baseURL)
}

// findInstallation finds the GitHub App installation for the given owner.
func findInstallation(ctx context.Context, client *gh.Client, owner string) (int64, error) {
	opts := &gh.ListOptions{PerPage: 100}
	for {
		installations, resp, err := client.Apps.ListInstallations(ctx, opts)
		if err != nil {
			return 0, fmt.Errorf("listing GitHub App installations: %w", err)
		}
		for _, inst := range installations {
			if inst.GetAccount().GetLogin() == owner {
				return inst.GetID(), nil
			}
		}
		if resp.NextPage == 0 {
			return 0, fmt.Errorf("no GitHub App installation found for owner %q", owner)
		}
		opts.Page = resp.NextPage
	}
}

// resolveAppID returns id, or GH_APP_ID when id is zero.
func resolveAppID(id int64) (int64, error) {
	if id != 0 {
		return id, nil
	}
	s := os.Getenv(EnvAppID)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", EnvAppID, s, err)
	}
	return v, nil
}

// resolveAppKey returns the App private key from PEM content or a PEM file,
// flags first, then GH_APP_PRIVATE_KEY and GH_APP_PRIVATE_KEY_PATH. It
// returns nil when no key is configured.
func resolveAppKey(content, path string) ([]byte, error) {
	switch {
	case content != "":
		return []byte(content), nil
	case path != "":
		return readKeyFile(path)
	}
	if env := os.Getenv(EnvAppKey); env != "" {
		return []byte(env), nil
	}
	if env := os.Getenv(EnvAppKeyPath); env != "" {
		return readKeyFile(env)
	}
	return nil, nil
}

func readKeyFile(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GitHub App private key: %w", err)
	}
	return key, nil
}

// IsNotFoundError reports whether err is a 404 response from the GitHub API,
// as opposed to auth failures, rate limits and transport errors.
func IsNotFoundError(err error) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// isNotFoundResponse is IsNotFoundError for calls such as GetBranch that
// report a non-200 status as a plain error and only expose the status on
// the response.
func isNotFoundResponse(resp *gh.Response, err error) bool {
	if IsNotFoundError(err) {
		return true
	}
	return err != nil && resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound
}

// resolveString returns the flag value if non-empty, otherwise the env var value.
func resolveString(flag, envKey string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(envKey)
}

// ResolveBaseURL resolves the GitHub API base URL from the flag value or
// GITHUB_API_URL. Empty means github.com.
func ResolveBaseURL(flagValue string) string {
	return resolveString(flagValue, EnvAPIURL)
}
