package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/domain"
	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

const notifyTimeout = 5 * time.Second

// Notifier is an alias for the canonical domain.Notifier interface.
type Notifier = domain.Notifier

// EventEnqueuer accepts committed events for asynchronous delivery.
type EventEnqueuer interface {
	Enqueue(evt models.Event)
}

// NotifyWorker buffers committed events and delivers them to every notifier
// from a single worker goroutine.
type NotifyWorker struct {
	notifiers []Notifier
	log       *logrus.Logger
	events    chan models.Event
}

// NewNotifyWorker creates a NotifyWorker with the given queue capacity.
func NewNotifyWorker(log *logrus.Logger, queueSize int, notifiers ...Notifier) *NotifyWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &NotifyWorker{
		notifiers: notifiers,
		log:       log,
		events:    make(chan models.Event, queueSize),
	}
}

// Enqueue adds an event. Non-blocking; drops the event if the queue is full.
func (w *NotifyWorker) Enqueue(evt models.Event) {
	select {
	case w.events <- evt:
		metrics.NotifyQueueDepth.Set(float64(len(w.events)))
	default:
		metrics.NotifyDropped.Inc()
		w.log.WithFields(logrus.Fields{
			"type":        evt.Type,
			"proposal_id": evt.ProposalID,
		}).Warn("notify queue full, dropping event")
	}
}

// Run delivers events until the context is cancelled, then drains remaining events.
func (w *NotifyWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case evt := <-w.events:
			w.process(evt)
		}
	}
}

func (w *NotifyWorker) drain() {
	for {
		select {
		case evt := <-w.events:
			w.process(evt)
		default:
			return
		}
	}
}

func (w *NotifyWorker) process(evt models.Event) {
	metrics.NotifyQueueDepth.Set(float64(len(w.events)))

	for _, n := range w.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		err := n.Notify(ctx, evt)
		cancel()

		if err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{
				"type":        evt.Type,
				"proposal_id": evt.ProposalID,
			}).Warn("event notification failed")
		}
	}
}

// LogNotifier writes each event as a structured log line.
type LogNotifier struct {
	Log *logrus.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, evt models.Event) error {
	n.Log.WithFields(logrus.Fields{
		"type":        evt.Type,
		"proposal_id": evt.ProposalID,
		"operation":   evt.Operation,
		"actor":       evt.Actor,
		"status":      evt.Status,
		"revision":    evt.Revision,
	}).Info("proposal event")

	return nil
}
