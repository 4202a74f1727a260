package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiError is the error envelope returned by hgigsd.
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

type apiResponse struct {
	Body   []byte
	Header http.Header
}

// call performs a request against the API. Private calls attach the bearer
// token and, for POSTs, a fresh Idempotency-Key unless one is supplied.
func call(method, path string, payload interface{}, private bool, idempotencyKey string) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	url := strings.TrimRight(rpcEndpoint, "/") + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		if rpcAuthToken == "" {
			return nil, errors.New("privileged call requires HGIGS_TOKEN or --token")
		}
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
		if method == http.MethodPost {
			if idempotencyKey == "" {
				idempotencyKey = uuid.NewString()
			}
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return &apiResponse{Body: data, Header: resp.Header}, nil
}

// getJSON fetches a public resource and decodes it into out.
func getJSON(path string, out interface{}) error {
	resp, err := call(http.MethodGet, path, nil, false, "")
	if err != nil {
		return err
	}
	return json.Unmarshal(resp.Body, out)
}

func writeResult(w io.Writer, data []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, bytes.TrimSpace(data), "", "  "); err != nil {
		fmt.Fprintln(w, strings.TrimSpace(string(data)))
		return
	}
	fmt.Fprintln(w, pretty.String())
}

func printError(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
