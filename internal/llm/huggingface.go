package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	httpclient "docqa/pkg/http"
)

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端。
type HuggingFace struct {
	client  *httpclient.Client // 带熔断器的 HTTP 客户端。
	model   string             // 要使用的模型名称。
	apiKey  string             // Hugging Face API 密钥。
	baseURL string             // Inference API 的基准 URL。
	opts    Options
}

type hfRequest struct {
	Inputs     string                 `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
// baseURL 为空时默认为 "https://api-inference.huggingface.co/models/"。
func NewHuggingFace(hc *httpclient.Client, model, apiKey, baseURL string, opts Options) (*HuggingFace, error) {
	if hc == nil {
		return nil, fmt.Errorf("huggingface LLM requires an http client")
	}
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HuggingFace{client: hc, model: model, apiKey: apiKey, baseURL: baseURL, opts: opts}, nil
}

// Generate 调用 text-generation 任务，只返回新生成的文本。
func (h *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	params := map[string]interface{}{"return_full_text": false}
	if h.opts.MaxNewTokens > 0 {
		params["max_new_tokens"] = h.opts.MaxNewTokens
	}
	jsonReq, err := json.Marshal(hfRequest{Inputs: prompt, Parameters: params})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(jsonReq))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("huggingface returned status %d: %s", resp.StatusCode, string(body))
	}

	var hfResp []hfGeneration
	if err := json.NewDecoder(resp.Body).Decode(&hfResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(hfResp) == 0 {
		return "", fmt.Errorf("no generated text returned")
	}
	return hfResp[0].GeneratedText, nil
}
