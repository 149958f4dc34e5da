// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// gatewayClient is a thin JSON client for the gateway admin API.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(baseURL string, timeout time.Duration) *gatewayClient {
	return &gatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// getJSON fetches path and decodes the response body into out.
//
// A non-2xx status is not an error when the body still decodes into
// out; /health intentionally serves its report with 503 when the
// gateway is unhealthy. The status code is returned so callers can
// decide.
func (c *gatewayClient) getJSON(ctx context.Context, path string, out any) (int, error) {
	return c.doJSON(ctx, http.MethodGet, path, out)
}

// postJSON issues an empty-body POST and decodes the response into out.
func (c *gatewayClient) postJSON(ctx context.Context, path string, out any) (int, error) {
	return c.doJSON(ctx, http.MethodPost, path, out)
}

func (c *gatewayClient) doJSON(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gateway unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unexpected response (%d) from %s: %w",
				resp.StatusCode, path, err)
		}
	}
	return resp.StatusCode, nil
}
