package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is the minimal HTTP client the subcommands share.
type apiClient struct {
	base string
	http *http.Client
}

func newClient() *apiClient {
	return &apiClient{
		base: apiAddr,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// postJSON posts body and decodes the response into out (out may be nil).
func (c *apiClient) postJSON(path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.http.Post(c.base+path, "application/json", &buf)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

// getJSON fetches path and decodes the response into out.
func (c *apiClient) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error.Message, resp.Status)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
