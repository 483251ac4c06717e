// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/glimpsehq/glimpse/config"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

// HTTPStore talks to a storage gateway over plain HTTP: PUT/HEAD/DELETE on
// /objects/<key>, and POST /sign to mint a time-limited read URL. Any
// gateway honoring those verbs is a compatible provider.
type HTTPStore struct {
	logger commons.Logger
	client *resty.Client
}

type signRequest struct {
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttlSeconds"`
}

type signResponse struct {
	URL string `json:"url"`
}

// NewHTTPStore builds a gateway-backed store.
func NewHTTPStore(logger commons.Logger, cfg config.AssetStoreConfig) (*HTTPStore, error) {
	if utils.IsEmpty(cfg.GatewayURL) {
		return nil, fmt.Errorf("http store: gateway_url is required")
	}
	client := resty.New().
		SetBaseURL(cfg.GatewayURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(0) // the uploader owns retry policy
	return &HTTPStore{logger: logger, client: client}, nil
}

func (h *HTTPStore) Provider() string { return "http" }

func (h *HTTPStore) Put(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(payload).
		Put("/objects/" + key)
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", key, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("putting %s: gateway returned %d", key, resp.StatusCode())
	}
	return h.client.BaseURL + "/objects/" + key, nil
}

func (h *HTTPStore) Head(ctx context.Context, key string) (*internal_type.ObjectInfo, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Head("/objects/" + key)
	if err != nil {
		return nil, fmt.Errorf("heading %s: %w", key, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", internal_type.ErrObjectNotFound, key)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("heading %s: gateway returned %d", key, resp.StatusCode())
	}
	info := &internal_type.ObjectInfo{SizeBytes: resp.RawResponse.ContentLength}
	if lm, err := http.ParseTime(resp.Header().Get("Last-Modified")); err == nil {
		info.LastModified = lm
	}
	return info, nil
}

func (h *HTTPStore) Delete(ctx context.Context, key string) error {
	resp, err := h.client.R().
		SetContext(ctx).
		Delete("/objects/" + key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	// 404 is a success: the object is already gone
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("deleting %s: gateway returned %d", key, resp.StatusCode())
	}
	return nil
}

func (h *HTTPStore) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var out signResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(signRequest{Key: key, TTLSeconds: int64(ttl.Seconds())}).
		SetResult(&out).
		Post("/sign")
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", key, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("signing %s: gateway returned %d", key, resp.StatusCode())
	}
	if out.URL == "" {
		return "", fmt.Errorf("signing %s: gateway returned no url", key)
	}
	return out.URL, nil
}
