package audit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLoggerAssignsIDAndTimestamp(t *testing.T) {
	m := NewMemoryLogger()
	ev := &Event{
		Actor:        "alice@example.com",
		ActorType:    ActorTypeStaff,
		Action:       ActionCreate,
		ResourceType: ResourceJob,
		ResourceID:   "1",
		StatusCode:   201,
	}
	if err := m.Log(context.Background(), ev); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("id/timestamp not assigned: %+v", ev)
	}
}

func TestMemoryLoggerNewestFirst(t *testing.T) {
	m := NewMemoryLogger()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		_ = m.Log(ctx, &Event{
			Actor: "x", ActorType: ActorTypeStaff, Action: ActionCreate,
			ResourceType: ResourceProperty, ResourceID: id,
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
		})
	}
	events, total, err := m.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(events) != 3 {
		t.Fatalf("got total=%d len=%d", total, len(events))
	}
	if events[0].ResourceID != "c" {
		t.Fatalf("newest first expected, got %s", events[0].ResourceID)
	}
}

func TestMemoryLoggerFilters(t *testing.T) {
	m := NewMemoryLogger()
	ctx := context.Background()
	_ = m.Log(ctx, &Event{Actor: "a@x.com", Action: ActionCreate, ResourceType: ResourceJob, ResourceID: "1"})
	_ = m.Log(ctx, &Event{Actor: "b@x.com", Action: ActionDelete, ResourceType: ResourceProperty, ResourceID: "2"})
	_ = m.Log(ctx, &Event{Actor: "a@x.com", Action: ActionUpdate, ResourceType: ResourceJob, ResourceID: "1"})

	events, total, err := m.List(ctx, ListOptions{Actor: "a@x.com"})
	if err != nil || total != 2 {
		t.Fatalf("actor filter: total=%d err=%v", total, err)
	}
	for _, e := range events {
		if e.Actor != "a@x.com" {
			t.Fatalf("wrong actor in result: %s", e.Actor)
		}
	}

	_, total, _ = m.List(ctx, ListOptions{ResourceType: ResourceProperty})
	if total != 1 {
		t.Fatalf("resource filter: total=%d", total)
	}
	_, total, _ = m.List(ctx, ListOptions{Action: ActionDelete})
	if total != 1 {
		t.Fatalf("action filter: total=%d", total)
	}
}

func TestMemoryLoggerPagination(t *testing.T) {
	m := NewMemoryLogger()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_ = m.Log(ctx, &Event{Actor: "x", Action: ActionCreate, ResourceType: ResourceJob, ResourceID: "1"})
	}
	events, total, err := m.List(ctx, ListOptions{Limit: 3, Offset: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 7 || len(events) != 2 {
		t.Fatalf("got total=%d len=%d, want 7 and 2", total, len(events))
	}
}

func TestMemoryLoggerRetentionCap(t *testing.T) {
	m := NewMemoryLogger(WithMaxEvents(3))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = m.Log(ctx, &Event{Actor: "x", Action: ActionCreate, ResourceType: ResourceJob, ResourceID: "1"})
	}
	_, total, _ := m.List(ctx, ListOptions{})
	if total != 3 {
		t.Fatalf("retention cap not applied: total=%d", total)
	}
}

func TestMemoryLoggerGetByResource(t *testing.T) {
	m := NewMemoryLogger()
	ctx := context.Background()
	_ = m.Log(ctx, &Event{Actor: "x", Action: ActionCreate, ResourceType: ResourceJob, ResourceID: "9"})
	_ = m.Log(ctx, &Event{Actor: "x", Action: ActionUpdate, ResourceType: ResourceJob, ResourceID: "9"})
	_ = m.Log(ctx, &Event{Actor: "x", Action: ActionCreate, ResourceType: ResourceJob, ResourceID: "10"})

	events, err := m.GetByResource(ctx, ResourceJob, "9")
	if err != nil {
		t.Fatalf("GetByResource: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}
