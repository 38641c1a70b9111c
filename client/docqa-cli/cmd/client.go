package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// apiClient talks to the docqa HTTP API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		if payload.Detail != "" {
			return fmt.Sprintf("server returned %d: %s: %s", e.Status, payload.Error, payload.Detail)
		}
		return fmt.Sprintf("server returned %d: %s", e.Status, payload.Error)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

type uploadOptions struct {
	IDs          []string
	ChunkSize    int
	ChunkOverlap int
}

// upload sends every path as a "file" part. Each part's Content-Type is sniffed from
// its content so the server sees the real type rather than a generic octet-stream.
func (c *apiClient) upload(paths []string, opts uploadOptions) ([]byte, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(path))))
		h.Set("Content-Type", mimetype.Detect(data).String())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}

		id := ""
		if i < len(opts.IDs) {
			id = opts.IDs[i]
		}
		if err := w.WriteField("file_id", id); err != nil {
			return nil, err
		}
	}
	if opts.ChunkSize > 0 {
		if err := w.WriteField("chunk_size", strconv.Itoa(opts.ChunkSize)); err != nil {
			return nil, err
		}
	}
	if opts.ChunkOverlap >= 0 {
		if err := w.WriteField("chunk_overlap", strconv.Itoa(opts.ChunkOverlap)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/documents", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, http.StatusMultiStatus)
}

func (c *apiClient) ask(question string, topK int) (*answer, error) {
	data, err := c.sendJSON(http.MethodPost, "/api/v1/ask", map[string]interface{}{"question": question, "top_k": topK})
	if err != nil {
		return nil, err
	}
	var ans answer
	if err := json.Unmarshal(data, &ans); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return &ans, nil
}

func (c *apiClient) listDocuments() ([]byte, error) {
	return c.sendJSON(http.MethodGet, "/api/v1/documents", nil)
}

func (c *apiClient) deleteDocuments(ids []string) ([]byte, error) {
	return c.sendJSON(http.MethodDelete, "/api/v1/documents", map[string][]string{"ids": ids}, http.StatusMultiStatus)
}

func (c *apiClient) listQuestions() ([]byte, error) {
	return c.sendJSON(http.MethodGet, "/api/v1/questions", nil)
}

func (c *apiClient) resetIndex() ([]byte, error) {
	return c.sendJSON(http.MethodPost, "/api/v1/index/reset", nil)
}

func (c *apiClient) sendJSON(method, path string, payload interface{}, accept ...int) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, accept...)
}

// do returns the body of a 200 response or of any status listed in accept.
func (c *apiClient) do(req *http.Request, accept ...int) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return data, nil
	}
	for _, code := range accept {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	return nil, &apiError{Status: resp.StatusCode, Body: string(data)}
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
