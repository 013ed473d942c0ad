package client

import "context"

// AdminService handles platform maintenance operations.
type AdminService struct {
	c *Client
}

// Expire cancels proposals that have not moved within the window. The caller
// must act as the platform.
func (s *AdminService) Expire(ctx context.Context, opts *ExpireOptions) (*ExpireResult, error) {
	body := map[string]any{}
	if opts != nil {
		if opts.OlderThan > 0 {
			body["older_than"] = opts.OlderThan.String()
		}
		if opts.Limit > 0 {
			body["limit"] = opts.Limit
		}
	}
	var res ExpireResult
	if err := s.c.post(ctx, "/api/v1/admin/expire", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Statuses returns the status registry the server enforces.
func (s *AdminService) Statuses(ctx context.Context) (*StatusRegistry, error) {
	var reg StatusRegistry
	if err := s.c.get(ctx, "/api/v1/statuses", nil, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}
