package simvue

import (
	"context"
	"net"
	"net/http"
)

// User is the identity behind the configured token.
type User struct {
	Username string `json:"username"`
	Tenant   string `json:"tenant"`
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "version", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// WhoAmI returns the user the token belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "whoami", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ResolveIP looks up the first address of the server host.
// Returns "Unknown IP" when the lookup fails.
func (c *Client) ResolveIP(ctx context.Context) string {
	addrs, err := net.DefaultResolver.LookupHost(ctx, c.Host())
	if err != nil || len(addrs) == 0 {
		return "Unknown IP"
	}
	return addrs[0]
}
