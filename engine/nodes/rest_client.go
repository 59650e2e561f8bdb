package nodes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
	"github.com/lyzr/rulechain/engine/resolver"
	"github.com/lyzr/rulechain/engine/ruleerr"
)

// restClientConfig configures an outbound HTTP call. URL supports ${...}
// template substitution against the inbound message.
type restClientConfig struct {
	URL         string `json:"url"`
	Method      string `json:"method"`
	TimeoutMS   int    `json:"timeout_ms"`
	MaxAttempts int    `json:"max_attempts"`
	RetryDelay  int    `json:"retry_delay_ms"`
}

type restClientHandler struct {
	cfg    restClientConfig
	client *http.Client
}

func newRestClientFactory() registry.Factory {
	return func(config json.RawMessage) (registry.Handler, error) {
		cfg := restClientConfig{Method: "GET", TimeoutMS: 5000, MaxAttempts: 1}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, err
			}
		}
		return &restClientHandler{
			cfg:    cfg,
			client: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		}, nil
	}
}

func (h *restClientHandler) Handle(ctx registry.Context, msg message.Message) (message.Message, error) {
	url, err := resolver.Resolve(h.cfg.URL, msg)
	if err != nil {
		return message.Message{}, ruleerr.Wrap(ruleerr.KindNodeExecutionError, err, "failed to resolve rest_client url")
	}

	maxAttempts := h.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := h.doRequest(url, msg)
		if err == nil {
			next := msg.Clone()
			next.Data = body
			return ctx.SendNext(next)
		}
		lastErr = err
		if attempt < maxAttempts && h.cfg.RetryDelay > 0 {
			time.Sleep(time.Duration(h.cfg.RetryDelay) * time.Millisecond)
		}
	}
	return message.Message{}, ruleerr.Wrap(ruleerr.KindComponentError, lastErr, "rest_client request to %q failed after %d attempt(s)", url, maxAttempts)
}

func (h *restClientHandler) doRequest(url string, msg message.Message) (json.RawMessage, error) {
	method := h.cfg.Method
	if method == "" {
		method = "GET"
	}

	var reqBody io.Reader
	if method != http.MethodGet && method != http.MethodDelete {
		reqBody = bytes.NewReader(msg.Data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, ruleerr.New(ruleerr.KindComponentError, "unexpected status %d from %q", resp.StatusCode, url)
	}
	return data, nil
}

func (h *restClientHandler) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		TypeName:    "rest_client",
		HumanName:   "REST Client",
		Description: "Issues an outbound HTTP request and replaces message data with the response body.",
		Role:        registry.RoleMiddle,
	}
}
