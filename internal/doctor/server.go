package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

// Server is the part of the service client the server checks use.
type Server interface {
	Version(ctx context.Context) (string, error)
	WhoAmI(ctx context.Context) (*simvue.User, error)
}

const unconfigured = "Not checked: the server config is incomplete"

// ServerCheck verifies the server answers the version endpoint.
type ServerCheck struct {
	Client Server // nil when the config couldn't produce a client
	URL    string
}

func (c *ServerCheck) Name() string     { return "server_reachable" }
func (c *ServerCheck) Category() string { return CategoryServer }

func (c *ServerCheck) Run(ctx context.Context) CheckResult {
	if c.Client == nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Message: unconfigured}
	}

	v, err := c.Client.Version(ctx)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't reach %s: %v", c.URL, err),
			Suggestion: "Check server.url and your network, then try 'simvue ping'",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (version %s)", c.URL, v),
	}
}

func (c *ServerCheck) Fix(_ context.Context) error { return nil }

// AuthCheck verifies the server accepts the configured token.
type AuthCheck struct {
	Client Server
}

func (c *AuthCheck) Name() string     { return "server_auth" }
func (c *AuthCheck) Category() string { return CategoryServer }

func (c *AuthCheck) Run(ctx context.Context) CheckResult {
	if c.Client == nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Message: unconfigured}
	}

	u, err := c.Client.WhoAmI(ctx)
	if err != nil {
		var apiErr *simvue.APIError
		if stderrors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    "The server rejected the token",
				Suggestion: "Generate a new token and run 'simvue config server.token <token>'",
			}
		}
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Couldn't verify the token: %v", err),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Authenticated as %s (%s)", u.Username, u.Tenant),
	}
}

func (c *AuthCheck) Fix(_ context.Context) error { return nil }
