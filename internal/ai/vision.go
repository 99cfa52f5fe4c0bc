package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VisionClient drives a local vision model through an Ollama-compatible
// /api/generate endpoint with a base64 images array. Used for page OCR
// when structural extraction is rejected and for captioning embedded
// pictures in slides.
type VisionClient struct {
	baseURL      string
	ocrModel     string
	captionModel string
	client       *http.Client
}

func NewVisionClient(baseURL, ocrModel, captionModel string, timeout time.Duration) *VisionClient {
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	return &VisionClient{
		baseURL:      baseURL,
		ocrModel:     ocrModel,
		captionModel: captionModel,
		client:       &http.Client{Timeout: timeout},
	}
}

const ocrPrompt = `Transcribe all text visible in this document page image. ` +
	`Preserve reading order, line breaks, numbers and units exactly as shown. ` +
	`Do not describe the page or add commentary; output the text only.`

const captionPrompt = `Describe this figure from an engineering document in one or two sentences. ` +
	`Name the component or test setup shown and any readable labels or values.`

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// OCRPage transcribes a rendered page image.
func (v *VisionClient) OCRPage(ctx context.Context, image []byte) (string, error) {
	return v.generate(ctx, v.ocrModel, ocrPrompt, image)
}

// Caption describes an embedded picture.
func (v *VisionClient) Caption(ctx context.Context, image []byte) (string, error) {
	return v.generate(ctx, v.captionModel, captionPrompt, image)
}

func (v *VisionClient) generate(ctx context.Context, model, prompt string, image []byte) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding vision response: %w", err)
	}
	return parsed.Response, nil
}
