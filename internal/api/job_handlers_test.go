package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

type jobDTO struct {
	ID                  int64   `json:"id"`
	Status              string  `json:"status"`
	Notes               string  `json:"notes"`
	IsAgency            bool    `json:"is_agency"`
	IsPrivateOwner      bool    `json:"is_private_owner"`
	IsCompleted         bool    `json:"is_completed"`
	IsCancelled         bool    `json:"is_cancelled"`
	IsCustomerContacted bool    `json:"is_customer_contacted"`
	Property            *struct {
		ID      int64  `json:"id"`
		Address string `json:"address"`
	} `json:"property"`
	Agency *struct {
		Name string `json:"name"`
	} `json:"agency"`
	Allocation []struct {
		FullName string `json:"full_name"`
	} `json:"allocation"`
}

func TestJobCreateAndGet(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Faraday St")

	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs",
		`{"property_id":`+itoa(propID)+`,"notes":"beeping alarm"}`, http.StatusCreated)
	job := decodeBody[jobDTO](t, rr)
	if job.Status != "new" {
		t.Fatalf("new job status = %q", job.Status)
	}
	if !job.IsAgency || job.IsPrivateOwner {
		t.Fatalf("ownership flags wrong: %+v", job)
	}
	if job.Property == nil || job.Property.ID != propID {
		t.Fatalf("nested property missing: %+v", job.Property)
	}
	if job.Agency == nil {
		t.Fatal("nested agency missing")
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs/"+itoa(job.ID), "", http.StatusOK)
	got := decodeBody[jobDTO](t, rr)
	if got.Notes != "beeping alarm" {
		t.Fatalf("notes = %q", got.Notes)
	}

	doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs/9999", "", http.StatusNotFound)
}

func TestJobCreateUnknownProperty(t *testing.T) {
	srv, _ := setupTestServer()
	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":42}`, http.StatusBadRequest)
	payload := decodeBody[map[string]string](t, rr)
	if payload["property_id"] == "" {
		t.Fatalf("expected field-keyed error, got %v", payload)
	}
}

func TestJobPatchStatusFlags(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Lygon St")
	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propID)+`}`, http.StatusCreated)
	job := decodeBody[jobDTO](t, rr)

	rr = doJSON(t, srv.mux, http.MethodPatch, "/api/v1/jobs/"+itoa(job.ID), `{"status":"completed"}`, http.StatusOK)
	got := decodeBody[jobDTO](t, rr)
	if !got.IsCompleted || got.IsCancelled {
		t.Fatalf("completed flags wrong: %+v", got)
	}

	rr = doJSON(t, srv.mux, http.MethodPatch, "/api/v1/jobs/"+itoa(job.ID), `{"status":"cancelled"}`, http.StatusOK)
	got = decodeBody[jobDTO](t, rr)
	if got.IsCompleted || !got.IsCancelled {
		t.Fatalf("cancelled flags wrong: %+v", got)
	}

	rr = doJSON(t, srv.mux, http.MethodPatch, "/api/v1/jobs/"+itoa(job.ID), `{"status":"launched"}`, http.StatusBadRequest)
	payload := decodeBody[map[string]string](t, rr)
	if payload["status"] == "" {
		t.Fatalf("expected field-keyed error, got %v", payload)
	}
}

func TestJobListFiltersAndEnvelope(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Rathdowne St")

	for i := 0; i < 12; i++ {
		doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propID)+`}`, http.StatusCreated)
	}
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs",
		`{"property_id":`+itoa(propID)+`,"status":"to_be_scheduled"}`, http.StatusCreated)

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs", "", http.StatusOK)
	page := decodeBody[pageDTO](t, rr)
	if page.Count != 13 || len(page.Results) != 10 {
		t.Fatalf("default page: count=%d results=%d", page.Count, len(page.Results))
	}
	if page.TotalPages != 2 || page.Next == nil || page.Previous != nil {
		t.Fatalf("envelope wrong: %+v", page)
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs?page=2", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if len(page.Results) != 3 || page.Previous == nil || page.Next != nil {
		t.Fatalf("page 2 wrong: results=%d prev=%v next=%v", len(page.Results), page.Previous, page.Next)
	}

	// Off-whitelist page size silently falls back to the default.
	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs?page_size=37", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if len(page.Results) != 10 {
		t.Fatalf("page_size fallback: results=%d", len(page.Results))
	}

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs?status=to_be_scheduled", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("status filter: count=%d", page.Count)
	}

	// Invalid date filters are ignored, not errors.
	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs?created_at_from=banana", "", http.StatusOK)
	page = decodeBody[pageDTO](t, rr)
	if page.Count != 13 {
		t.Fatalf("bad date should be ignored: count=%d", page.Count)
	}
}

func TestJobListSearch(t *testing.T) {
	srv, _ := setupTestServer()
	_, propA := createAgencyProperty(t, srv.mux, "Faraday St")
	_, propB := createAgencyProperty(t, srv.mux, "Drummond St")
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propA)+`,"notes":"flat battery"}`, http.StatusCreated)
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propB)+`,"notes":"flat battery"}`, http.StatusCreated)

	rr := doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs?search=faraday+battery", "", http.StatusOK)
	page := decodeBody[pageDTO](t, rr)
	if page.Count != 1 {
		t.Fatalf("multi-term search: count=%d", page.Count)
	}
}

func TestJobUpdatesFlow(t *testing.T) {
	srv, _ := setupTestServer()
	_, propID := createAgencyProperty(t, srv.mux, "Elgin St")
	rr := doJSON(t, srv.mux, http.MethodPost, "/api/v1/jobs", `{"property_id":`+itoa(propID)+`}`, http.StatusCreated)
	job := decodeBody[jobDTO](t, rr)

	doJSON(t, srv.mux, http.MethodPost, "/api/v1/job-updates",
		`{"job_id":`+itoa(job.ID)+`,"status":"awaiting_response","note":"left voicemail"}`, http.StatusCreated)
	doJSON(t, srv.mux, http.MethodPost, "/api/v1/job-updates",
		`{"job_id":`+itoa(job.ID)+`,"status":"completed","note":"replaced unit"}`, http.StatusCreated)

	rr = doJSON(t, srv.mux, http.MethodGet, "/api/v1/jobs/"+itoa(job.ID)+"/updates", "", http.StatusOK)
	var updates []struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &updates); err != nil {
		t.Fatalf("unmarshal updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	if updates[0].Note != "replaced unit" {
		t.Fatalf("newest first expected, got %q", updates[0].Note)
	}

	doJSON(t, srv.mux, http.MethodPost, "/api/v1/job-updates", `{"job_id":9999,"status":"new"}`, http.StatusNotFound)
}
