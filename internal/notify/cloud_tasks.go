package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"

	"github.com/ocx/raider/internal/loot"
	"github.com/ocx/raider/internal/probe"
)

// CloudTasksSink decorates a loot.Sink: after a successful Add, it also
// enqueues an HTTP callback task via Cloud Tasks, so an operator-owned
// webhook fires the instant a credential is found. Durable retry,
// dead-lettering, and rate limiting are handled by the Cloud Tasks queue
// itself -- directly grounded on internal/webhooks.CloudDispatcher's
// enqueueTask shape, with its in-memory fallback *Dispatcher reused here as
// *HTTPNotifier.
type CloudTasksSink struct {
	loot.Sink

	client    *cloudtasks.Client
	queuePath string
	webhook   string
	logger    *log.Logger
	fallback  *HTTPNotifier
}

// NewCloudTasksSink wraps inner with Cloud Tasks-backed webhook delivery.
// If fallbackWorkers > 0, an HTTPNotifier is also started as a fallback
// used when enqueueing to Cloud Tasks itself fails.
func NewCloudTasksSink(ctx context.Context, inner loot.Sink, projectID, locationID, queueID, webhookURL string, fallbackWorkers int) (*CloudTasksSink, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: cloudtasks.NewClient: %w", err)
	}

	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, locationID, queueID)

	s := &CloudTasksSink{
		Sink:      inner,
		client:    client,
		queuePath: queuePath,
		webhook:   webhookURL,
		logger:    log.New(log.Writer(), "[NOTIFY-CLOUDTASKS] ", log.LstdFlags),
	}
	if fallbackWorkers > 0 {
		s.fallback = NewHTTPNotifier(webhookURL, fallbackWorkers)
	}
	return s, nil
}

func (s *CloudTasksSink) Add(ctx context.Context, l probe.Loot) error {
	if err := s.Sink.Add(ctx, l); err != nil {
		return err
	}
	s.enqueueTask(l)
	return nil
}

func (s *CloudTasksSink) enqueueTask(l probe.Loot) {
	payload, err := json.Marshal(l)
	if err != nil {
		s.logger.Printf("failed to marshal loot task payload: %v", err)
		return
	}

	req := &taskspb.CreateTaskRequest{
		Parent: s.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        s.webhook,
					Headers:    map[string]string{"Content-Type": "application/json"},
					Body:       payload,
				},
			},
		},
	}

	go func() {
		taskCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := s.client.CreateTask(taskCtx, req); err != nil {
			s.logger.Printf("Cloud Task enqueue failed for %s@%s: %v", l.Plugin, l.Target, err)
			if s.fallback != nil {
				s.fallback.Notify(l)
			}
		}
	}()
}

func (s *CloudTasksSink) Close() error {
	if s.fallback != nil {
		s.fallback.Shutdown()
	}
	if err := s.client.Close(); err != nil {
		return err
	}
	return s.Sink.Close()
}
