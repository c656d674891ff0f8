package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sigreer/astrogod/internal/config"
)

var httpClient = &http.Client{Timeout: 10 * time.Minute}

// apiBase turns the configured listen address into a URL the CLI can dial.
func apiBase(cfg *config.Config) string {
	addr := cfg.API.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api"
}

// callAPI issues a request to the running service and decodes the JSON reply into out.
func callAPI(cfg *config.Config, method, path string, out any) error {
	req, err := http.NewRequest(method, apiBase(cfg)+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is `astrogod serve` running? %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s (%d)", e.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
