package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rent-radar/internal/infra/metrics"
)

const defaultBaseURL = "https://api.twilio.com"

// Config — реквизиты доступа к Twilio Messaging API.
type Config struct {
	AccountSID   string
	AuthToken    string
	FromNumber   string
	WhatsAppFrom string
	Timeout      time.Duration
}

// Client — минимальный клиент Twilio Messaging API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиента Twilio.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetHTTPClient подменяет HTTP клиент, используется в тестах.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// SetBaseURL подменяет адрес API, используется в тестах.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// send отправляет сообщение через Messages.json.
func (c *Client) send(ctx context.Context, from, to, body string) error {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("twilio", "message_create", "messages", start, err)
	if err != nil {
		return fmt.Errorf("запрос к twilio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio: статус %d, код %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio: неожиданный статус %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
