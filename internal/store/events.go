package store

import (
	"context"
	"fmt"
	"time"
)

// Recognized conversion-funnel stages, in funnel order.
const (
	EventDemoClick      = "demo_click"
	EventDemoCompletion = "demo_completion"
	EventEmailClick     = "email_click"
)

func validEventType(t string) bool {
	switch t {
	case EventDemoClick, EventDemoCompletion, EventEmailClick:
		return true
	}
	return false
}

// RecordEvent appends one conversion event. data is an optional free-form
// blob; no PII belongs in it.
func (s *Store) RecordEvent(ctx context.Context, eventType, data string) error {
	if !validEventType(eventType) {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, event_data, created_at) VALUES (?, ?, ?)`,
		eventType, data, fmtTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// EventCounts returns per-type event counts since the given time.
func (s *Store) EventCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM events
		 WHERE created_at >= ? GROUP BY event_type`,
		fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// RecentEvents returns the newest events, most recent first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, event_type, event_data, created_at FROM events
		 ORDER BY event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Type, &e.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
