package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/events"
)

// sendTimeout bounds the whole round trip, including the server-side ingest.
const sendTimeout = 5 * time.Minute

// NewSendCmd constructs the `ragpdf send` command, which posts one event to
// a running `ragpdf serve`.
func NewSendCmd() *cobra.Command {
	var name string
	var data string
	var id string
	var url string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an event to a running ragpdf server",
		Long: `Post an event to POST /api/events and print the function runs.

RAGPDF_API_KEY, when set, is sent as the Bearer token.

Examples:
  ragpdf send --name rag/ingest_pdf --data '{"pdf_path":"/srv/docs/manual.pdf"}'
  ragpdf send --name rag/query_pdf_ai --data '{"question":"what is covered?","top_k":3}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			evt := events.Event{ID: id, Name: name}
			if err := json.Unmarshal([]byte(data), &evt.Data); err != nil {
				return fmt.Errorf("send: --data must be a JSON object: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
			defer cancel()

			body, status, err := postEvent(ctx, url, os.Getenv("RAGPDF_API_KEY"), evt)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(body); err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("send: server returned %d", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Event name, e.g. rag/ingest_pdf")
	cmd.Flags().StringVarP(&data, "data", "d", "{}", "Event data as a JSON object")
	cmd.Flags().StringVar(&id, "id", "", "Event id for deduplication (default: assigned by the server)")
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080", "Base URL of the ragpdf server")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// postEvent sends evt to baseURL/api/events and returns the response body
// and status code.
func postEvent(ctx context.Context, baseURL, apiKey string, evt events.Event) ([]byte, int, error) {
	if evt.Name == "" {
		return nil, 0, errors.New("event name is required")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal event: %w", err)
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/api/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
