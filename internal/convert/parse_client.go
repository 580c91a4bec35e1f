package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// parseClient calls a remote document-parsing service that converts
// spreadsheets to markdown.
type parseClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newParseClient(baseURL, apiKey string) *parseClient {
	return &parseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (p *parseClient) ToMarkdown(ctx context.Context, path, filename string) (string, string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open %s for parsing: %w", filename, err)
	}
	defer src.Close()

	body := &strings.Builder{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("build parse request: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", "", fmt.Errorf("read %s for parsing: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return "", "", fmt.Errorf("finalize parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/parse/markdown", strings.NewReader(body.String()))
	if err != nil {
		return "", "", fmt.Errorf("create parse request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", fmt.Errorf("parse %s failed (%d): %s", filename, resp.StatusCode, string(msg))
	}

	var result struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("decode parse response for %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp("", "convert-*.md")
	if err != nil {
		return "", "", fmt.Errorf("create converted file: %w", err)
	}
	if _, err := tmp.WriteString(result.Markdown); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("write converted markdown: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("close converted markdown: %w", err)
	}

	newName := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".md"
	return tmp.Name(), newName, nil
}
