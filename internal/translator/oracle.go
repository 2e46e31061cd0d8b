package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
)

// Oracle is the external translation backend. Both calls carry the
// caller's context; the deadline on it bounds the whole exchange.
type Oracle interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	DetectLanguage(ctx context.Context, text string) (string, error)
}

type httpOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle creates an Oracle speaking JSON over HTTP.
func NewHTTPOracle(cfg config.OracleConfig) Oracle {
	return &httpOracle{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Language string `json:"language"`
}

func (o *httpOracle) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	var resp translateResponse
	err := o.post(ctx, "/v1/translate", translateRequest{
		Text:           text,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

func (o *httpOracle) DetectLanguage(ctx context.Context, text string) (string, error) {
	var resp detectResponse
	if err := o.post(ctx, "/v1/detect", detectRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Language, nil
}

func (o *httpOracle) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
