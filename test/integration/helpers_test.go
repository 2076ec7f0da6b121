package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// testServer holds the base URL of a running kolon server for tests. The
// server is expected to be started with -I test/integration/testdata/templates.
var testServer string

func init() {
	testServer = os.Getenv("KOLON_URL")
	if testServer == "" {
		testServer = "http://localhost:8787"
	}
	// Ensure the URL has a scheme.
	if !strings.HasPrefix(testServer, "http://") && !strings.HasPrefix(testServer, "https://") {
		testServer = "http://" + testServer
	}
}

var client = &http.Client{Timeout: 10 * time.Second}

// requireServer skips the test when no kolon server is reachable.
func requireServer(t *testing.T) {
	t.Helper()
	resp, err := client.Get(strings.TrimRight(testServer, "/") + "/healthz")
	if err != nil {
		t.Skipf("kolon server not reachable at %s: %v", testServer, err)
	}
	resp.Body.Close()
}

// apiURL builds a full URL for the given API path.
func apiURL(path string) string {
	return strings.TrimRight(testServer, "/") + "/v1/" + path
}

type apiToken struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Line int    `json:"line"`
	File string `json:"file"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Kind    string `json:"kind"`
		Line    int    `json:"line"`
		Context string `json:"context"`
	} `json:"error"`
}

// tokenize posts source to the tokenize endpoint and returns the status code
// and raw body.
func tokenize(t *testing.T, source string, syntax map[string]string) (int, []byte) {
	t.Helper()
	body := map[string]interface{}{"source": source}
	if syntax != nil {
		body["syntax"] = syntax
	}
	data, _ := json.Marshal(body)

	resp, err := client.Post(apiURL("tokenize"), "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody
}

// tokenizeOK tokenizes source and fails the test on a non-200 response.
func tokenizeOK(t *testing.T, source string) []apiToken {
	t.Helper()
	code, body := tokenize(t, source, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var result struct {
		Tokens []apiToken `json:"tokens"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return result.Tokens
}

// tokenizeErr tokenizes source and returns the decoded error body.
func tokenizeErr(t *testing.T, source string) (int, apiError) {
	t.Helper()
	code, body := tokenize(t, source, nil)
	var result apiError
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return code, result
}

// getJSON issues a GET and decodes the JSON response into v.
func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return resp.StatusCode
}

// typesOf returns the token types joined by spaces.
func typesOf(tokens []apiToken) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.Type
	}
	return strings.Join(parts, " ")
}
