package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the health subcommand.
func newHealthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
			}

			client := &http.Client{Timeout: 5 * time.Second}

			checks := map[string]string{}
			healthy := true
			for _, endpoint := range []string{"/health", "/ready"} {
				status, err := probe(cmd, client, addr+endpoint)
				if err != nil {
					checks[endpoint] = err.Error()
					healthy = false
					continue
				}
				checks[endpoint] = status
				if status != "healthy" && status != "ready" {
					healthy = false
				}
			}

			if outputJSON {
				if err := json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"address": addr,
					"healthy": healthy,
					"checks":  checks,
				}); err != nil {
					return err
				}
			} else {
				for endpoint, status := range checks {
					if status == "healthy" || status == "ready" {
						Success("%s: %s", endpoint, status)
					} else {
						Error("%s: %s", endpoint, status)
					}
				}
			}

			if !healthy {
				return fmt.Errorf("server at %s is not healthy", addr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "server address (default: from config)")

	return cmd
}

func probe(cmd *cobra.Command, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, body)
	}

	return payload.Status, nil
}
