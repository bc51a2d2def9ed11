package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/config"
	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/util"
)

// Client is the typed gateway to the Absher demo backend. Every portal
// capability maps to one method; HTTP failures are normalized into the
// AppError taxonomy so callers never parse status codes or message
// strings themselves.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Login exchanges credentials for a backend-issued user identity.
// Invalid credentials surface as AUTH_FAILED; everything else is a
// transport or request error.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	resp, err := c.postJSON(ctx, "/login", loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		return nil, apperrors.AuthFailed()
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode login response: %w", err))
	}
	return &result, nil
}

// SendChat forwards one user message and returns the assistant's reply.
func (c *Client) SendChat(ctx context.Context, userID, message string) (*ChatResult, error) {
	resp, err := c.postJSON(ctx, "/chat", chatRequest{UserID: userID, Message: message})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode chat response: %w", err))
	}
	return &result, nil
}

// ConfirmAction informs the backend of the user's decision on a
// proposed action. A missing service type means the action payload is
// malformed, not a transient failure, so it is rejected before any I/O.
func (c *Client) ConfirmAction(ctx context.Context, params ConfirmParams) (*ConfirmResult, error) {
	if params.ServiceType == "" {
		return nil, apperrors.MissingRequired("service_type")
	}

	resp, err := c.postJSON(ctx, "/confirm-action", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result ConfirmResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode confirm response: %w", err))
	}
	return &result, nil
}

// ChargePayment runs the simulated charge. Declines arrive both as
// non-2xx responses and as 2xx responses with a non-success status;
// both are normalized to PAYMENT_DECLINED. Callers must never retry a
// charge automatically.
func (c *Client) ChargePayment(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	resp, err := c.postJSON(ctx, "/payment/charge", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		return nil, apperrors.PaymentDeclined(detail)
	}

	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode charge response: %w", err))
	}
	return &result, nil
}

// Notifications lists the user's SMS and in-app notifications.
func (c *Client) Notifications(ctx context.Context, userID string) ([]model.Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications/"+userID, nil)
	if err != nil {
		return nil, apperrors.Internal("create request").WithCause(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var notifications []model.Notification
	if err := json.NewDecoder(resp.Body).Decode(&notifications); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode notifications: %w", err))
	}
	return notifications, nil
}

// RunProactive triggers the backend's proactive notification engine.
func (c *Client) RunProactive(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run_proactive", nil)
	if err != nil {
		return apperrors.Internal("create request").WithCause(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// UploadIDPhoto sends an ID photo for background removal. The file must
// already be validated: only images up to the size limit leave the
// portal, oversized or non-image files fail without a network round trip.
func (c *Client) UploadIDPhoto(ctx context.Context, userID, filename, contentType string, size int64, file io.Reader) (*UploadResult, error) {
	if !util.IsImageContentType(contentType) {
		return nil, apperrors.InvalidInput("file", "must be an image")
	}
	if size > config.MaxUploadSize {
		return nil, apperrors.InvalidInput("file", "must be 10MB or smaller")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("user_id", userID); err != nil {
		return nil, apperrors.Internal("build upload form").WithCause(err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Internal("build upload form").WithCause(err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, apperrors.Internal("read upload").WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.Internal("build upload form").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/id-photo", &body)
	if err != nil {
		return nil, apperrors.Internal("create request").WithCause(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.Network(fmt.Errorf("decode upload response: %w", err))
	}
	return &result, nil
}

// Transcribe converts recorded audio into text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return "", apperrors.Internal("build transcribe form").WithCause(err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", apperrors.Internal("read audio").WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.Internal("build transcribe form").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice/transcribe", &body)
	if err != nil {
		return "", apperrors.Internal("create request").WithCause(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result transcribeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.Network(fmt.Errorf("decode transcription: %w", err))
	}
	return result.Text, nil
}

// Synthesize converts text into playable speech. The returned reader
// streams the audio; the caller owns closing it.
func (c *Client) Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error) {
	payload, err := json.Marshal(ttsRequest{Text: text})
	if err != nil {
		return nil, "", apperrors.Internal("marshal tts request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, "", apperrors.Internal("create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorDetail(resp.Body)
		resp.Body.Close()
		return nil, "", apperrors.RequestRejected(detail)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return resp.Body, contentType, nil
}

// Health reports whether the backend answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Internal("marshal request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal("create request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if isTimeout(err) {
			log.Error().
				Str("path", req.URL.Path).
				Dur("elapsed", elapsed).
				Msg("backend request timed out")
			return nil, apperrors.Timeout(err)
		}
		log.Error().
			Err(err).
			Str("path", req.URL.Path).
			Dur("elapsed", elapsed).
			Msg("backend request failed")
		return nil, apperrors.Network(err)
	}

	log.Debug().
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("backend request")

	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// checkStatus turns non-2xx responses into REQUEST_REJECTED carrying
// the backend's own detail when it provides one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return apperrors.RequestRejected(readErrorDetail(resp.Body))
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}

	var parsed backendError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.message() != "" {
		return parsed.message()
	}
	return strings.TrimSpace(string(raw))
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}
