package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

var client = http.Client{Timeout: 30 * time.Second}

// submit posts the document to the node and returns the response body.
func submit(url string, route string, data []byte) ([]byte, error) {
	resp, err := client.Post(url+route, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", route, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s: %s: %s", route, resp.Status, bytes.TrimSpace(body))
	}

	return body, nil
}
