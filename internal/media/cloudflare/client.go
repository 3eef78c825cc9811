// Package cloudflare provides a client uploading event media to Cloudflare Images (pictures) and Cloudflare Stream
// (videos)
package cloudflare

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/metrics"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

// Operation names used in errors, logs and metrics
const (
	OpUploadImage = "upload_image"
	OpUploadVideo = "upload_video"
	OpDeleteImage = "delete_image"
	OpDeleteVideo = "delete_video"
)

// Responses larger than this are cut off - they only carry IDs and messages
const maxResponseSize = 1 << 20

// UpstreamError is returned when Cloudflare rejected a request or could not be reached
type UpstreamError struct {
	Operation string
	// HTTP status returned by Cloudflare - 0 if there was no response
	Status int
	// The first error message reported by Cloudflare
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("cloudflare %s failed: %s", e.Operation, e.Message)
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the response format shared by all Cloudflare API calls
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type imageResult struct {
	ID       string   `json:"id"`
	Variants []string `json:"variants"`
}

type videoResult struct {
	UID string `json:"uid"`
}

// Client talks to the Cloudflare API. All calls pass through a circuit breaker that rejects requests for a while
// after too many consecutive failures
type Client struct {
	accountID  string
	apiToken   string
	apiBase    string
	streamBase string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	logger     *logrus.Entry
}

// New creates a new Cloudflare client from the given configuration
func New(cfg models.CloudflareConfig, logger *logrus.Entry) *Client {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c := &Client{
		accountID:  cfg.AccountID,
		apiToken:   cfg.APIToken,
		apiBase:    strings.TrimRight(cfg.APIBaseURL, "/"),
		streamBase: strings.TrimRight(cfg.StreamBaseURL, "/"),
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "cloudflare",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Requests Cloudflare refused for a reason of their own (bad file, unknown ID) do not count
		IsSuccessful: func(err error) bool {
			var upErr *UpstreamError
			if errors.As(err, &upErr) {
				return upErr.Status > 0 && upErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("Circuit breaker changed state")
			metrics.MediaBreakerState.Set(float64(to))
		},
	})
	return c
}

// UploadImage uploads a picture to Cloudflare Images. The metadata is stored along with the image
func (c *Client) UploadImage(
	ctx context.Context,
	file io.Reader,
	fileName string,
	meta map[string]string,
) (*models.MediaAsset, error) {
	fields := map[string]string{}
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode image metadata")
		}
		fields["metadata"] = string(data)
	}
	raw, err := c.upload(ctx, OpUploadImage, c.accountURL("images/v1"), file, fileName, fields)
	if err != nil {
		return nil, err
	}
	var res imageResult
	if err := json.Unmarshal(raw, &res); err != nil || res.ID == "" {
		return nil, &UpstreamError{Operation: OpUploadImage, Status: http.StatusOK, Message: "unexpected response"}
	}
	asset := &models.MediaAsset{ID: res.ID}
	if len(res.Variants) > 0 {
		asset.URL = res.Variants[0]
	}
	return asset, nil
}

// UploadVideo uploads a video to Cloudflare Stream
func (c *Client) UploadVideo(
	ctx context.Context,
	file io.Reader,
	fileName string,
	meta map[string]string,
) (*models.MediaAsset, error) {
	fields := map[string]string{}
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode video metadata")
		}
		fields["meta"] = string(data)
	}
	raw, err := c.upload(ctx, OpUploadVideo, c.accountURL("stream"), file, fileName, fields)
	if err != nil {
		return nil, err
	}
	var res videoResult
	if err := json.Unmarshal(raw, &res); err != nil || res.UID == "" {
		return nil, &UpstreamError{Operation: OpUploadVideo, Status: http.StatusOK, Message: "unexpected response"}
	}
	return &models.MediaAsset{ID: res.UID, URL: c.streamBase + "/" + res.UID}, nil
}

// DeleteImage removes a picture from Cloudflare Images
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	_, err := c.call(ctx, OpDeleteImage, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.accountURL("images/v1/"+id), nil)
	})
	return err
}

// DeleteVideo removes a video from Cloudflare Stream
func (c *Client) DeleteVideo(ctx context.Context, id string) error {
	_, err := c.call(ctx, OpDeleteVideo, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.accountURL("stream/"+id), nil)
	})
	return err
}

func (c *Client) accountURL(path string) string {
	return fmt.Sprintf("%s/accounts/%s/%s", c.apiBase, c.accountID, path)
}

// upload streams the file as multipart form field "file" followed by the given extra fields
func (c *Client) upload(
	ctx context.Context,
	op, url string,
	file io.Reader,
	fileName string,
	fields map[string]string,
) (json.RawMessage, error) {
	return c.call(ctx, op, func() (*http.Request, error) {
		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeForm(mw, file, fileName, fields))
		}()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
		if err != nil {
			pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
}

func writeForm(mw *multipart.Writer, file io.Reader, fileName string, fields map[string]string) error {
	if fileName == "" {
		fileName = "upload"
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	return mw.Close()
}

// call executes one API request through the circuit breaker and returns the "result" part of the response
func (c *Client) call(
	ctx context.Context,
	op string,
	makeRequest func() (*http.Request, error),
) (json.RawMessage, error) {
	logger := c.logger.WithField(log.FldMediaKind, op)
	res, err := c.breaker.Execute(func() (json.RawMessage, error) {
		req, err := makeRequest()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		return c.do(op, req)
	})
	switch {
	case err == nil:
		metrics.MediaCallsTotal.WithLabelValues(op, "success").Inc()
		return res, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MediaCallsTotal.WithLabelValues(op, "rejected").Inc()
		logger.WithError(err).Warn("Media store call rejected by circuit breaker")
		return nil, &UpstreamError{Operation: op, Message: "media service temporarily unavailable"}
	default:
		metrics.MediaCallsTotal.WithLabelValues(op, "failure").Inc()
		logger.WithError(err).Warn("Media store call failed")
		return nil, err
	}
}

func (c *Client) do(op string, req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Operation: op, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Operation: op, Status: resp.StatusCode, Message: err.Error()}
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		msg := http.StatusText(resp.StatusCode)
		if ok {
			msg = "unreadable response"
		}
		return nil, &UpstreamError{Operation: op, Status: resp.StatusCode, Message: msg}
	}
	if !ok || !env.Success {
		msg := http.StatusText(resp.StatusCode)
		if len(env.Errors) > 0 && env.Errors[0].Message != "" {
			msg = env.Errors[0].Message
		}
		return nil, &UpstreamError{Operation: op, Status: resp.StatusCode, Message: msg}
	}
	return env.Result, nil
}
