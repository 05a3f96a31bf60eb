package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	lokiQueueSize = 1024
	lokiTimeout   = 10 * time.Second
)

type Options struct {
	ServiceName string
	Environment string
	// LokiURL is the push endpoint, e.g. http://loki:3100/loki/api/v1/push.
	// Logs only go to stdout when empty.
	LokiURL string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

// New builds the process logger: a console core on stdout and, when a Loki
// URL is configured, a JSON core pushing to Loki. The returned shutdown
// flushes queued Loki entries.
func New(opts Options) (*zap.Logger, func(context.Context) error, error) {
	level := zapcore.InfoLevel
	consoleConfig := zap.NewProductionEncoderConfig()
	consoleEncoder := zapcore.NewJSONEncoder(consoleConfig)
	if opts.Environment != "production" {
		level = zapcore.DebugLevel
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	}

	shutdown := func(context.Context) error { return nil }
	if opts.LokiURL != "" {
		w := newLokiWriter(opts.LokiURL, map[string]string{
			"service_name": opts.ServiceName,
			"environment":  opts.Environment,
			"job":          opts.ServiceName + "-api",
		}, &http.Client{Timeout: lokiTimeout})

		lokiConfig := zap.NewProductionEncoderConfig()
		lokiConfig.TimeKey = "ts"
		lokiConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(lokiConfig), w, level))
		shutdown = w.Shutdown
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, shutdown, nil
}

// lokiWriter queues encoded entries and pushes them from a single goroutine.
// Entries are dropped when the queue is full.
type lokiWriter struct {
	url    string
	labels map[string]string
	client *http.Client
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

func newLokiWriter(url string, labels map[string]string, client *http.Client) *lokiWriter {
	w := &lokiWriter{
		url:    url,
		labels: labels,
		client: client,
		now:    time.Now,
		queue:  make(chan []byte, lokiQueueSize),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *lokiWriter) Write(p []byte) (int, error) {
	// zap reuses the buffer after Write returns.
	line := make([]byte, len(p))
	copy(line, p)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}

	select {
	case w.queue <- line:
	default:
		fmt.Fprintln(os.Stderr, "loki queue full, dropping log entry")
	}
	return len(p), nil
}

func (w *lokiWriter) Sync() error {
	return nil
}

func (w *lokiWriter) run() {
	defer close(w.done)
	for line := range w.queue {
		if err := w.push(line); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send log to loki: %v\n", err)
		}
	}
}

func (w *lokiWriter) push(line []byte) error {
	body, err := json.Marshal(lokiPushRequest{
		Streams: []lokiStream{{
			Stream: w.streamLabels(line),
			Values: [][]string{{strconv.FormatInt(w.now().UnixNano(), 10), string(bytes.TrimSpace(line))}},
		}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("loki returned status %d", resp.StatusCode)
	}
	return nil
}

// streamLabels promotes low-cardinality fields of the entry to Loki labels.
func (w *lokiWriter) streamLabels(line []byte) map[string]string {
	labels := make(map[string]string, len(w.labels)+3)
	for k, v := range w.labels {
		labels[k] = v
	}

	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		return labels
	}
	if level, ok := entry["level"].(string); ok && level != "" {
		labels["level"] = level
	}
	if component, ok := entry["component"].(string); ok && component != "" {
		labels["component"] = component
	}
	if method, ok := entry["method"].(string); ok && method != "" {
		labels["method"] = method
	}
	return labels
}

// Shutdown stops accepting entries and waits for the queue to drain.
func (w *lokiWriter) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
