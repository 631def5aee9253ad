package api

import (
	"context"
	"errors"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. Rejected credentials return *AuthError.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "login", "/api/auth/login", loginRequest{Username: username, Password: password})
}

// Register creates an account and returns its token. A taken username or an
// invalid form returns *AuthError.
func (c *Client) Register(ctx context.Context, username, fullName, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "register", "/api/auth/register", registerRequest{
		Username: username,
		FullName: fullName,
		Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, op, path string, in any) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.doRequest(ctx, http.MethodPost, path, in, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status < 500 {
			return nil, &AuthError{Status: se.status, Message: se.msg}
		}
		return nil, fetchErr(op, err)
	}
	if resp.Token == "" {
		return nil, &AuthError{Status: http.StatusOK, Message: "server returned no token"}
	}
	return &resp, nil
}
