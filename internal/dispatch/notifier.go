package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freshpress-app/freshpress-backend/pkg/errors"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
)

// Notifier triggers dispatch for a newly created order. Callers do not care
// whether the dispatch runs in-process or in the standalone worker.
type Notifier interface {
	NotifyOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

const remoteNotifyTimeout = 10 * time.Second

// RemoteNotifier forwards dispatch requests to the worker's notify endpoint.
type RemoteNotifier struct {
	url    string
	client *http.Client
}

// NewRemoteNotifier builds a notifier against workerURL. An empty URL returns
// nil, meaning no worker is configured.
func NewRemoteNotifier(workerURL string) *RemoteNotifier {
	trimmed := strings.TrimRight(strings.TrimSpace(workerURL), "/")
	if trimmed == "" {
		return nil
	}
	return &RemoteNotifier{
		url:    trimmed + "/notify-order",
		client: &http.Client{Timeout: remoteNotifyTimeout},
	}
}

type notifyRequest struct {
	OrderID uuid.UUID `json:"order_id"`
}

type notifyResponse struct {
	Data struct {
		Sent bool `json:"sent"`
	} `json:"data"`
}

// NotifyOrder posts the order id to the worker and reports whether the worker
// sent at least one message.
func (n *RemoteNotifier) NotifyOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	body, err := json.Marshal(notifyRequest{OrderID: orderID})
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "encoding notify request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "building notify request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, errors.Wrap(errors.CodeDependency, err, "reaching dispatch worker")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, errors.New(errors.CodeDependency,
			fmt.Sprintf("dispatch worker returned status %d", resp.StatusCode))
	}

	var decoded notifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, errors.Wrap(errors.CodeDependency, err, "decoding worker response")
	}
	return decoded.Data.Sent, nil
}

// DelegatingNotifier prefers the standalone worker and falls back to the
// in-process engine when the worker is unreachable. This keeps exactly one
// process talking to Telegram for any given order.
type DelegatingNotifier struct {
	logg   *logger.Logger
	probe  interface{ Available(ctx context.Context) bool }
	remote *RemoteNotifier
	local  Service
}

// NewDelegatingNotifier wires the worker-or-local decision. remote may be nil
// when no worker URL is configured; every call then runs locally.
func NewDelegatingNotifier(logg *logger.Logger, probe interface{ Available(ctx context.Context) bool }, remote *RemoteNotifier, local Service) *DelegatingNotifier {
	return &DelegatingNotifier{logg: logg, probe: probe, remote: remote, local: local}
}

func (d *DelegatingNotifier) NotifyOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if d.remote != nil && d.probe != nil && d.probe.Available(ctx) {
		sent, err := d.remote.NotifyOrder(ctx, orderID)
		if err == nil {
			return sent, nil
		}
		d.logg.Warn(ctx, fmt.Sprintf("dispatch worker call failed, falling back to local dispatch: %v", err))
	}
	return d.local.SendOrderNotification(ctx, orderID)
}
