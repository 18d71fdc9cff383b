package api

import (
	"context"
	"net/http"
	"testing"

	"alarmtrack/internal/audit"
	"alarmtrack/internal/domain"
)

func TestListUsersActiveOnly(t *testing.T) {
	srv, st := setupTestServer()
	ctx := context.Background()

	a, _ := st.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "on@x.com", FirstName: "On"})
	b, _ := st.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "off@x.com", FirstName: "Off"})
	if _, ok, err := st.SetStaffActive(ctx, b.ID, false); err != nil || !ok {
		t.Fatalf("SetStaffActive: ok=%v err=%v", ok, err)
	}

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/users", "", http.StatusOK)
	users := decodeBody[[]staffView](t, rr)
	if len(users) != 1 || users[0].ID != a.ID {
		t.Fatalf("active-only list wrong: %+v", users)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/users?all=true", "", http.StatusOK)
	users = decodeBody[[]staffView](t, rr)
	if len(users) != 2 {
		t.Fatalf("all list wrong: %+v", users)
	}
}

func TestUpdateUserActiveFlag(t *testing.T) {
	srv, st := setupTestServer()
	staff, _ := st.UpsertStaffByEmail(context.Background(), domain.StaffInput{Email: "z@x.com"})

	rr := doJSON(t, srv.mux, http.MethodPatch, "/api/v1/users/"+itoa(staff.ID),
		`{"is_active":false}`, http.StatusOK)
	got := decodeBody[staffView](t, rr)
	if got.ID != staff.ID {
		t.Fatalf("wrong user updated: %+v", got)
	}

	doJSON(t, srv.mux, http.MethodPatch, "/api/v1/users/"+itoa(staff.ID), `{}`, http.StatusBadRequest)
	doJSON(t, srv.mux, http.MethodPatch, "/api/v1/users/9999", `{"is_active":true}`, http.StatusNotFound)
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	srv, _ := setupTestServer()
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/agencies", `{"name":"LJ Hooker"}`, http.StatusCreated)

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/audit", "", http.StatusOK)
	page := decodeBody[struct {
		Count   int            `json:"count"`
		Results []*audit.Event `json:"results"`
	}](t, rr)
	if page.Count != 1 {
		t.Fatalf("audit count = %d", page.Count)
	}
	ev := page.Results[0]
	if ev.Action != audit.ActionCreate || ev.ResourceType != audit.ResourceAgency || ev.ResourceName != "LJ Hooker" {
		t.Fatalf("event wrong: %+v", ev)
	}
	if ev.Actor != "anonymous" {
		t.Fatalf("unauthenticated mutation should record anonymous actor, got %q", ev.Actor)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/audit?resource_type=job", "", http.StatusOK)
	page2 := decodeBody[struct {
		Count int `json:"count"`
	}](t, rr)
	if page2.Count != 0 {
		t.Fatalf("filtered audit count = %d", page2.Count)
	}
}
