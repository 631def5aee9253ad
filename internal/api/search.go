package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// SearchUsers looks up users by username or name. Results are served from the
// search cache when one is configured.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if c.search != nil {
		if users, err := c.search.Get(query); err == nil {
			return users, nil
		}
	}

	var out []User
	if err := c.doRequest(ctx, http.MethodGet, "/users/search?query="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, fetchErr("search users", err)
	}
	if c.search != nil {
		c.search.Set(query, out)
	}
	return out, nil
}
