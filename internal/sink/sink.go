package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
)

// DefaultTemplate renders a one-line summary of a recorded entry.
const DefaultTemplate = "{{.AssetSymbol}} {{.Amount}} {{short_addr .From}} -> {{short_addr .To}} ({{.Hash}})"

// Sender delivers a newly recorded ledger entry to an external channel.
type Sender interface {
	Send(ctx context.Context, entry ledger.Entry) error
}

type httpSender struct {
	url          string
	method       string
	render       *template.Template
	client       *http.Client
	headers      map[string]string
	includeEntry bool
}

// NewWebhookSender builds a generic HTTP sink. The body carries the rendered
// text and the entry itself.
func NewWebhookSender(url, method, tmpl string, headers map[string]string) (Sender, error) {
	s, err := newHTTPSender(url, method, tmpl, headers)
	if err != nil {
		return nil, err
	}
	s.includeEntry = true
	return s, nil
}

// NewSlackSender builds a Slack-compatible webhook sink.
func NewSlackSender(url, tmpl string) (Sender, error) {
	return newHTTPSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

// NewTeamsSender builds a Teams-compatible webhook sink.
func NewTeamsSender(url, tmpl string) (Sender, error) {
	// Teams accepts simple {text: "..."} payloads.
	return newHTTPSender(url, http.MethodPost, tmpl, map[string]string{
		"Content-Type": "application/json",
	})
}

func newHTTPSender(url, method, tmpl string, headers map[string]string) (*httpSender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url required")
	}
	if method == "" {
		method = http.MethodPost
	}
	t, err := parseTemplate(tmpl)
	if err != nil {
		return nil, err
	}
	if headers == nil {
		headers = map[string]string{"Content-Type": "application/json"}
	}
	return &httpSender{
		url:     url,
		method:  strings.ToUpper(method),
		render:  t,
		client:  defaultClient(),
		headers: headers,
	}, nil
}

type httpBody struct {
	Text  string        `json:"text"`
	Entry *ledger.Entry `json:"entry,omitempty"`
}

func (s *httpSender) Send(ctx context.Context, entry ledger.Entry) error {
	text, err := executeTemplate(s.render, entry)
	if err != nil {
		return err
	}
	body := httpBody{Text: text}
	if s.includeEntry {
		body.Entry = &entry
	}
	var reqBody bytes.Buffer
	enc := json.NewEncoder(&reqBody)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, &reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink http status %d", resp.StatusCode)
	}
	return nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	funcs := template.FuncMap{
		"pretty_json": func(v any) string {
			out, _ := json.MarshalIndent(v, "", "  ")
			return string(out)
		},
		"short_addr": func(addr string) string {
			if len(addr) <= 10 {
				return addr
			}
			return addr[:6] + "..." + addr[len(addr)-4:]
		},
	}
	t, err := template.New("msg").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

func executeTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func defaultClient() *http.Client {
	return &http.Client{
		Timeout: 8 * time.Second,
	}
}
