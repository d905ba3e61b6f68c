package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/account-service/internal/core/events"
)

// MailJob is one outbound message waiting for a worker.
type MailJob struct {
	To      string
	Subject string
	Body    string
}

type worker struct {
	id         int
	workerPool chan chan MailJob
	jobChannel chan MailJob
	logger     *slog.Logger
}

func newWorker(id int, pool chan chan MailJob, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: pool,
		jobChannel: make(chan MailJob),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, process func(MailJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				w.logger.Debug("mail worker processing job", "worker_id", w.id, "to", job.To)
				process(job)
			case <-ctx.Done():
				w.logger.Debug("mail worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

type Config struct {
	APIURL      string
	APIKey      string
	FromAddress string
	Workers     int
	SendTimeout time.Duration
}

// Mailer is the outbound email collaborator. Delivery is queued and
// processed by a small worker pool; a failed send is logged and dropped,
// it never reaches the API caller.
type Mailer struct {
	apiURL      string
	apiKey      string
	fromAddress string
	sendTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	jobQueue   chan MailJob
	workerPool chan chan MailJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Mailer{
		apiURL:      cfg.APIURL,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		sendTimeout: cfg.SendTimeout,
		httpClient:  &http.Client{Timeout: cfg.SendTimeout},
		logger:      logger,
		jobQueue:    make(chan MailJob, 64),
		workerPool:  make(chan chan MailJob, cfg.Workers),
		maxWorkers:  cfg.Workers,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker pool and the dispatcher. Safe to call once.
func (m *Mailer) Start() {
	m.once.Do(func() {
		for i := 0; i < m.maxWorkers; i++ {
			newWorker(i, m.workerPool, m.logger).start(m.ctx, &m.wg, m.deliver)
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case job := <-m.jobQueue:
					select {
					case jobChannel := <-m.workerPool:
						// the worker may have exited after parking its
						// channel, so this send needs the same guard
						select {
						case jobChannel <- job:
						case <-m.ctx.Done():
							return
						}
					case <-m.ctx.Done():
						return
					}
				case <-m.ctx.Done():
					return
				}
			}
		}()
	})
}

// Stop drains the pool.
func (m *Mailer) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Enqueue schedules a message without blocking the caller; when the queue
// is full the message is dropped and logged.
func (m *Mailer) Enqueue(job MailJob) {
	select {
	case m.jobQueue <- job:
	default:
		m.logger.Warn("mail queue full, dropping message", "to", job.To, "subject", job.Subject)
	}
}

// SubscribeToUserEvents registers the welcome-mail handler on the bus.
func (m *Mailer) SubscribeToUserEvents(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, event events.Event) error {
		created, ok := event.(*events.UserCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s", event.EventType())
		}
		m.Enqueue(MailJob{
			To:      created.Email,
			Subject: "Welcome",
			Body:    "Your account has been created.",
		})
		return nil
	})
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m *Mailer) deliver(job MailJob) {
	payload, err := json.Marshal(sendRequest{
		From:    m.fromAddress,
		To:      job.To,
		Subject: job.Subject,
		Body:    job.Body,
	})
	if err != nil {
		m.logger.Error("failed to encode mail payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(payload))
	if err != nil {
		m.logger.Error("failed to build mail request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Error("mail delivery failed", "to", job.To, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		m.logger.Error("mail API rejected message", "to", job.To, "status", resp.StatusCode)
		return
	}

	m.logger.Info("mail delivered", "to", job.To, "subject", job.Subject)
}
