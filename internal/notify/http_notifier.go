// Package notify implements the optional loot webhook: an operator-supplied
// URL that is POSTed to the instant a credential is found, so a find can be
// acted on without waiting for the run to finish.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ocx/raider/internal/probe"
)

// HTTPNotifier delivers loot webhooks from an in-memory worker pool with
// retry, grounded on internal/webhooks.Dispatcher's queue+worker-pool
// shape. It is the no-cloud-credentials fallback used both standalone and
// by CloudTasksSink when Cloud Tasks enqueueing fails.
type HTTPNotifier struct {
	url        string
	httpClient *http.Client
	queue      chan deliveryJob
	logger     *log.Logger
	wg         sync.WaitGroup
}

type deliveryJob struct {
	loot    probe.Loot
	attempt int
}

// NewHTTPNotifier starts a background worker pool of size workers that
// POSTs a JSON loot payload to url on every call to Notify.
func NewHTTPNotifier(url string, workers int) *HTTPNotifier {
	if workers <= 0 {
		workers = 2
	}
	n := &HTTPNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan deliveryJob, 1000),
		logger:     log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// Notify enqueues l for webhook delivery. Non-blocking: if the queue is
// full the notification is dropped and logged, mirroring
// webhooks.Dispatcher.Emit's queue-full handling -- a dropped webhook never
// blocks a worker's retry envelope.
func (n *HTTPNotifier) Notify(l probe.Loot) {
	select {
	case n.queue <- deliveryJob{loot: l, attempt: 1}:
	default:
		n.logger.Printf("notify queue full, dropping loot webhook for %s@%s", l.Plugin, l.Target)
	}
}

func (n *HTTPNotifier) worker() {
	defer n.wg.Done()
	for job := range n.queue {
		n.deliver(job)
	}
}

func (n *HTTPNotifier) deliver(job deliveryJob) {
	payload, err := json.Marshal(job.loot)
	if err != nil {
		n.logger.Printf("failed to marshal loot webhook payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Printf("failed to build loot webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Raider-Delivery-Attempt", fmt.Sprintf("%d", job.attempt))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Printf("loot webhook delivery failed: %v", err)
		n.retry(job)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Printf("loot webhook returned %d", resp.StatusCode)
		n.retry(job)
	}
}

func (n *HTTPNotifier) retry(job deliveryJob) {
	if job.attempt >= 3 {
		return
	}
	time.Sleep(time.Duration(job.attempt*job.attempt) * time.Second)
	job.attempt++
	select {
	case n.queue <- job:
	default:
	}
}

// Shutdown drains the queue and waits for in-flight deliveries to finish.
func (n *HTTPNotifier) Shutdown() {
	close(n.queue)
	n.wg.Wait()
}
