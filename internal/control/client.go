// Package control sends instructions from the coordinator to game servers
// over their HTTP control endpoint. Every call is a single best-effort POST.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lodestone/internal/domain"
	"lodestone/internal/metrics"
)

const (
	ActionReconnect = "reconnect-announce"
	ActionFullSync  = "request-full-sync"
	ActionKick      = "disconnect-player"
	ActionBanNotify = "ban-notify"
)

var ErrUpstream = errors.New("upstream unavailable")

type Client struct {
	httpClient *http.Client
	token      string
	prefix     string
}

func NewClient(timeout time.Duration, token, pathPrefix string) *Client {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if pathPrefix == "" {
		pathPrefix = "/lodestone"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
		prefix:     "/" + strings.Trim(pathPrefix, "/"),
	}
}

// BaseURL is the server's declared control URL, or http://host:port.
func BaseURL(srv domain.ServerRecord) string {
	if srv.ControlURL != "" {
		return strings.TrimRight(srv.ControlURL, "/")
	}
	if u, ok := srv.Meta["controlUrl"].(string); ok && u != "" {
		return strings.TrimRight(u, "/")
	}
	host := srv.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + strconv.Itoa(srv.Port)
}

type announcePayload struct {
	Restarted bool `json:"restarted"`
}

type disconnectPayload struct {
	UUID   string `json:"uuid"`
	Reason string `json:"reason"`
}

type banNotifyPayload struct {
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (c *Client) AnnounceRestart(ctx context.Context, srv domain.ServerRecord) error {
	return c.post(ctx, srv, ActionReconnect, announcePayload{Restarted: true})
}

func (c *Client) RequestFullSync(ctx context.Context, srv domain.ServerRecord) error {
	return c.post(ctx, srv, ActionFullSync, struct{}{})
}

func (c *Client) Disconnect(ctx context.Context, srv domain.ServerRecord, uuid, reason string) error {
	return c.post(ctx, srv, ActionKick, disconnectPayload{UUID: uuid, Reason: reason})
}

func (c *Client) NotifyBan(ctx context.Context, srv domain.ServerRecord, b domain.Ban) error {
	return c.post(ctx, srv, ActionBanNotify, banNotifyPayload{
		UUID:      b.UUID,
		Name:      b.Name,
		Reason:    b.Reason,
		ExpiresAt: b.ExpiresAt,
	})
}

func (c *Client) post(ctx context.Context, srv domain.ServerRecord, action string, body any) (err error) {
	defer func() {
		metrics.OutboundCallsTotal.WithLabelValues(action, metrics.Result(err)).Inc()
	}()

	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := BaseURL(srv) + c.prefix + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, srv.Name, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrUpstream, srv.Name, action, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
