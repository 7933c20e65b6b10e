package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stellarlinkco/myalex/internal/auth"
	"github.com/stellarlinkco/myalex/internal/config"
	"github.com/stellarlinkco/myalex/internal/netstatus"
	"github.com/tidwall/gjson"
)

const (
	historicalLocationEndpoint = "/webhook/historical-location"
	predictiveEventsEndpoint   = "/webhook/predictive-events"
	userActivityEndpoint       = "/webhook/user-activity"
	trendingTopicsEndpoint     = "/webhook/trending-topics"
	safetyNetEndpoint          = "/webhook/safety-net-data"
	generativeAskEndpoint      = "/webhook/generative-ask"
	visualAnalysisEndpoint     = "/webhook/visual-analysis"
	userFeedbackEndpoint       = "/webhook/user-feedback"
	loginEndpoint              = "/webhook/auth/login"
	signupEndpoint             = "/webhook/auth/signup"
	meEndpoint                 = "/webhook/auth/me"
)

// ErrOffline is returned without touching the network when the connectivity
// monitor reports the device offline.
var ErrOffline = errors.New("device is offline")

// TokenStore supplies and persists the session token.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// Client talks to the n8n webhook backend. All calls retry transient
// failures with exponential delay and unwrap the n8n response envelope.
type Client struct {
	baseURL string
	http    *http.Client
	net     netstatus.Status
	tokens  TokenStore
	timeout time.Duration
	retries int

	retryInterval time.Duration
}

func NewClient(cfg config.BackendConfig, net netstatus.Status, tokens TokenStore) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}
	retries := cfg.RetryAttempts
	if retries <= 0 {
		retries = config.DefaultRetryAttempts
	}

	return &Client{
		baseURL:       baseURL,
		http:          http.DefaultClient,
		net:           net,
		tokens:        tokens,
		timeout:       timeout,
		retries:       retries,
		retryInterval: 2 * time.Second,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) call(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if c.net != nil && !c.net.Online() {
		return nil, ErrOffline
	}

	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = data
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInterval
	expo.RandomizationFactor = 0
	expo.Multiplier = 2

	attempt := 0
	result, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		data, err := c.doRequest(ctx, endpoint, body)
		if err != nil {
			log.Printf("[api] call %s attempt %d failed: %v", endpoint, attempt, err)
			return nil, err
		}
		return data, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(c.retries)))
	if err != nil {
		return nil, fmt.Errorf("api call %s: %w", endpoint, err)
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			_ = c.tokens.Clear()
		}
		return nil, backoff.Permanent(fmt.Errorf("session expired, please log in again"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return unwrapEnvelope(data), nil
}

// unwrapEnvelope strips the n8n wrapping: either an array whose first item
// holds the payload under "json", or an object with the payload under "data".
func unwrapEnvelope(body []byte) []byte {
	res := gjson.ParseBytes(body)
	if res.IsArray() {
		if first := res.Get("0.json"); first.Exists() {
			return []byte(first.Raw)
		}
	}
	if res.IsObject() {
		if data := res.Get("data"); data.Exists() && data.Type != gjson.Null {
			return []byte(data.Raw)
		}
	}
	return body
}

func decode[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// HistoricalContext asks the backend for AI-generated historical context at
// a coordinate.
func (c *Client) HistoricalContext(ctx context.Context, lat, lng float64, language, userID string) (HistoricalContextResponse, error) {
	data, err := c.call(ctx, historicalLocationEndpoint, map[string]any{
		"latitude":  lat,
		"longitude": lng,
		"language":  language,
		"user_id":   userID,
	})
	if err != nil {
		return HistoricalContextResponse{}, err
	}
	return decode[HistoricalContextResponse](data)
}

func (c *Client) PredictedEvents(ctx context.Context) (PredictedEventsResponse, error) {
	data, err := c.call(ctx, predictiveEventsEndpoint, nil)
	if err != nil {
		return PredictedEventsResponse{}, err
	}
	return decode[PredictedEventsResponse](data)
}

func (c *Client) RoomSuggestions(ctx context.Context, activity UserActivity) (SocialAnalysisResponse, error) {
	if activity.InteractionHistory == nil {
		activity.InteractionHistory = []map[string]any{}
	}
	data, err := c.call(ctx, userActivityEndpoint, activity)
	if err != nil {
		return SocialAnalysisResponse{}, err
	}
	return decode[SocialAnalysisResponse](data)
}

func (c *Client) TrendingTopics(ctx context.Context) (TrendingTopicsResponse, error) {
	data, err := c.call(ctx, trendingTopicsEndpoint, nil)
	if err != nil {
		return TrendingTopicsResponse{}, err
	}
	return decode[TrendingTopicsResponse](data)
}

func (c *Client) SafetyNet(ctx context.Context) (SafetyNetResponse, error) {
	data, err := c.call(ctx, safetyNetEndpoint, nil)
	if err != nil {
		return SafetyNetResponse{}, err
	}
	return decode[SafetyNetResponse](data)
}

// Ask routes a free-form cultural question through the backend, which holds
// the model credentials.
func (c *Client) Ask(ctx context.Context, query, userType string, settings config.SettingsConfig) (CulturalResponse, error) {
	data, err := c.call(ctx, generativeAskEndpoint, map[string]any{
		"query":    query,
		"userType": userType,
		"settings": settings,
	})
	if err != nil {
		return CulturalResponse{}, err
	}
	return decode[CulturalResponse](data)
}

// VisualAnalysis submits a base64 image for backend-side analysis.
func (c *Client) VisualAnalysis(ctx context.Context, imageData, mimeType string, settings config.SettingsConfig) (CulturalResponse, error) {
	data, err := c.call(ctx, visualAnalysisEndpoint, map[string]any{
		"imageData": imageData,
		"mimeType":  mimeType,
		"settings":  settings,
	})
	if err != nil {
		return CulturalResponse{}, err
	}
	return decode[CulturalResponse](data)
}

// SendFeedback submits one event-feedback payload. Offline queueing lives in
// the feedback package.
func (c *Client) SendFeedback(ctx context.Context, payload map[string]any) error {
	_, err := c.call(ctx, userFeedbackEndpoint, payload)
	return err
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	data, err := c.call(ctx, loginEndpoint, map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResponse{}, err
	}
	resp, err := decode[LoginResponse](data)
	if err != nil {
		return LoginResponse{}, err
	}
	if resp.Token != "" && c.tokens != nil {
		if err := c.tokens.SetToken(resp.Token); err != nil {
			return LoginResponse{}, fmt.Errorf("store token: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) Signup(ctx context.Context, displayName, email, password, profile string) (LoginResponse, error) {
	data, err := c.call(ctx, signupEndpoint, map[string]any{
		"displayName": displayName,
		"email":       email,
		"password":    password,
		"profile":     profile,
	})
	if err != nil {
		return LoginResponse{}, err
	}
	resp, err := decode[LoginResponse](data)
	if err != nil {
		return LoginResponse{}, err
	}
	if resp.Token != "" && c.tokens != nil {
		if err := c.tokens.SetToken(resp.Token); err != nil {
			return LoginResponse{}, fmt.Errorf("store token: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (LoginResponse, error) {
	data, err := c.call(ctx, meEndpoint, nil)
	if err != nil {
		return LoginResponse{}, err
	}
	return decode[LoginResponse](data)
}

var _ TokenStore = (*auth.Store)(nil)
