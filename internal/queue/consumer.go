package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartLendingConsumer connects to RabbitMQ, declares the lending queue
// (durable), and starts consuming messages.  Each message is appended to
// logPath in a single-line, human-friendly format.  The function runs a
// reconnect loop and only returns when ctx is cancelled; processing
// errors are logged and the offending message rejected.
func StartLendingConsumer(ctx context.Context, url, logPath string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("lending-consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("lending-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("lending-consumer: set QoS failed", "err", err)
	}

	if _, err := ch.QueueDeclare(LendingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(LendingQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(d.Body, logPath); err != nil {
				slog.Error("lending-consumer: handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(body []byte, logPath string) error {
	var ev LendingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders one event as a log line.  Zero-valued ids are left out.
func formatLine(ev LendingEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | event_id=%s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.EventID)
	field := func(name string, v uint64) {
		if v != 0 {
			fmt.Fprintf(&b, " | %s=%d", name, v)
		}
	}
	field("member_id", ev.MemberID)
	field("book_id", ev.BookID)
	field("book_copy_id", ev.BookCopyID)
	field("borrowing_id", ev.BorrowingID)
	field("reservation_id", ev.ReservationID)
	field("queue_position", uint64(ev.QueuePosition))
	if ev.Type == BorrowingOverdue {
		fmt.Fprintf(&b, " | count=%d", ev.Count)
	}
	b.WriteByte('\n')
	return b.String()
}
