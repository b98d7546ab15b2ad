package dlqadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"transbot-ops/internal/circuitbreaker"
	apperrors "transbot-ops/internal/common/errors"
	commonhttp "transbot-ops/internal/common/http"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/common/validation"
	"transbot-ops/internal/signature"
)

const maxReplayResponseBytes = 4 << 20

// ReplayRequest is the body sent to the replay worker.
type ReplayRequest struct {
	CompanyID string   `json:"company_id" validate:"required"`
	Max       int      `json:"max" validate:"min=1,max=1000"`
	DryRun    bool     `json:"dry_run"`
	DLQIDs    []string `json:"dlq_ids,omitempty" validate:"omitempty,dive,required"`
}

// ReplayResponse is the worker's answer, relayed verbatim.
type ReplayResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Replayer forwards a replay to the worker.
type Replayer interface {
	Replay(ctx context.Context, req ReplayRequest) (*ReplayResponse, error)
}

// ReplayRecorder receives the status and latency of each worker call.
// Status 0 means no response arrived.
type ReplayRecorder interface {
	ObserveReplayCall(status int, elapsed time.Duration)
}

type ReplayClientConfig struct {
	URL      string
	Timeout  time.Duration
	Signer   *signature.Signer
	Breaker  *circuitbreaker.GoBreakerAdapter
	Recorder ReplayRecorder
}

// ReplayClient makes one signed POST per replay. It never retries; an open
// breaker fails the call without touching the network.
type ReplayClient struct {
	url      string
	path     string
	signer   *signature.Signer
	client   *http.Client
	breaker  *circuitbreaker.GoBreakerAdapter
	recorder ReplayRecorder
	logger   logging.Logger
}

func NewReplayClient(config ReplayClientConfig, logger logging.Logger) (*ReplayClient, error) {
	if config.URL == "" {
		return nil, apperrors.ConfigError("replay worker url is required")
	}
	if config.Signer == nil {
		return nil, apperrors.ConfigError("replay worker signer is required")
	}

	parsed, err := url.Parse(config.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid replay worker url %q", config.URL))
	}

	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.NewGoBreaker("replay-worker", circuitbreaker.ReplayWorkerConfig, logger)
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	return &ReplayClient{
		url:      config.URL,
		path:     path,
		signer:   config.Signer,
		client:   commonhttp.NewHTTPClient(commonhttp.WithTimeout(config.Timeout), commonhttp.WithoutRedirects()),
		breaker:  config.Breaker,
		recorder: config.Recorder,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "replay_client"}),
	}, nil
}

// Replay sends req to the worker. Any HTTP response, including 4xx and 5xx,
// is returned as-is; only transport failures and an open breaker are errors.
func (c *ReplayClient) Replay(ctx context.Context, req ReplayRequest) (*ReplayResponse, error) {
	if err := validation.Default().ValidateStruct(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.InternalError("failed to encode replay request", err)
	}

	var out *ReplayResponse
	start := time.Now()

	err = c.breaker.Execute(ctx, func() error {
		resp, err := c.send(ctx, req.CompanyID, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})

	status := 0
	if out != nil {
		status = out.StatusCode
	}
	if c.recorder != nil {
		c.recorder.ObserveReplayCall(status, time.Since(start))
	}

	if out != nil {
		c.logger.WithContext(ctx).Info("Replay worker responded",
			logging.Field{Key: "company_id", Value: req.CompanyID},
			logging.Field{Key: "status", Value: out.StatusCode},
			logging.Field{Key: "dry_run", Value: req.DryRun},
			logging.Duration("elapsed", time.Since(start)),
		)
		return out, nil
	}

	if appErr, ok := apperrors.As(err); ok {
		return nil, appErr
	}
	c.logger.WithContext(ctx).Error("Replay worker request failed", err,
		logging.Field{Key: "company_id", Value: req.CompanyID},
	)
	return nil, apperrors.ConnectionError(fmt.Sprintf("replay worker request failed: %v", err), err)
}

func (c *ReplayClient) send(ctx context.Context, companyID string, body []byte) (*ReplayResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	env := c.signer.Sign(http.MethodPost, c.path, body)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(signature.CompanyHeader, companyID)
	httpReq.Header.Set(signature.HeaderName, env.String())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplayResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read replay worker response: %w", err)
	}

	return &ReplayResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
