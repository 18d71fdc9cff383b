//go:build sqlite

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"alarmtrack/internal/domain"
	"alarmtrack/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("file:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAgencyProperty(t *testing.T, s *Store, street string) (domain.Agency, domain.Property) {
	t.Helper()
	ctx := context.Background()
	a, err := s.CreateAgency(ctx, domain.CreateAgency{Name: "Ray White " + street})
	if err != nil {
		t.Fatalf("CreateAgency: %v", err)
	}
	p, err := s.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber: "12",
		StreetName:   street,
		Suburb:       "Carlton",
		State:        "VIC",
		Postcode:     "3053",
		AgencyID:     &a.ID,
	})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	return a, p
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "test.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()
	s, err = New(dsn)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s.Close()
}

func TestPropertyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber:  "7",
		StreetName:    "Gold St",
		Suburb:        "Collingwood",
		State:         "VIC",
		Postcode:      "3066",
		PrivateOwners: []domain.PersonInput{{FirstName: "Maya", LastName: "Chen"}},
		Tenants:       []domain.PersonInput{{FirstName: "Rob"}},
	})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	if len(p.PrivateOwnerIDs) != 1 || len(p.TenantIDs) != 1 {
		t.Fatalf("links = %v / %v, want one each", p.PrivateOwnerIDs, p.TenantIDs)
	}

	// Case-insensitive duplicate lookup.
	dup, ok, err := s.FindPropertyByAddress(ctx, "", "7", "gold st", "COLLINGWOOD")
	if err != nil || !ok || dup.ID != p.ID {
		t.Fatalf("FindPropertyByAddress = %v %v %v", dup.ID, ok, err)
	}

	// Switching to an agency clears and deletes the orphaned owner.
	a, err := s.CreateAgency(ctx, domain.CreateAgency{Name: "Nelson Alexander"})
	if err != nil {
		t.Fatalf("CreateAgency: %v", err)
	}
	ownerID := p.PrivateOwnerIDs[0]
	swapped, ok, err := s.SetPropertyAgency(ctx, p.ID, &a.ID)
	if err != nil || !ok {
		t.Fatalf("SetPropertyAgency: %v %v", ok, err)
	}
	if swapped.AgencyID == nil || *swapped.AgencyID != a.ID || len(swapped.PrivateOwnerIDs) != 0 {
		t.Fatalf("swapped = %+v", swapped)
	}
	if _, ok, _ := s.GetPrivateOwner(ctx, ownerID); ok {
		t.Fatal("orphaned owner should be deleted")
	}

	// Reverting with no owners on file is refused.
	if _, _, err := s.SetPropertyAgency(ctx, p.ID, nil); !errors.Is(err, storage.ErrValidation) {
		t.Fatalf("revert err = %v, want validation", err)
	}
}

func TestTenantOrphanCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedAgencyProperty(t, s, "Faraday St")

	tenant, err := s.AddTenant(ctx, p.ID, domain.PersonInput{FirstName: "Ana", LastName: "Silva"})
	if err != nil {
		t.Fatalf("AddTenant: %v", err)
	}
	job, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if len(job.TenantIDs) != 1 || job.TenantIDs[0] != tenant.ID {
		t.Fatalf("job snapshot = %v, want [%d]", job.TenantIDs, tenant.ID)
	}

	ok, err := s.RemoveTenant(ctx, p.ID, tenant.ID)
	if err != nil || !ok {
		t.Fatalf("RemoveTenant: %v %v", ok, err)
	}
	if _, ok, _ := s.GetTenant(ctx, tenant.ID); ok {
		t.Fatal("orphaned tenant should be deleted")
	}
	// The job's snapshot reference goes with the tenant.
	got, ok, err := s.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("GetJob: %v %v", ok, err)
	}
	if len(got.TenantIDs) != 0 {
		t.Fatalf("job tenants after cleanup = %v, want none", got.TenantIDs)
	}
}

func TestDeletePropertyGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedAgencyProperty(t, s, "Station St")

	if _, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.DeleteProperty(ctx, p.ID); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("delete with jobs err = %v, want conflict", err)
	}

	_, empty := seedAgencyProperty(t, s, "Empty St")
	ok, err := s.DeleteProperty(ctx, empty.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteProperty: %v %v", ok, err)
	}
}

func TestJobListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p1 := seedAgencyProperty(t, s, "Drummond St")

	p2, err := s.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber:  "4",
		StreetName:    "Beach Rd",
		Suburb:        "St Kilda",
		State:         "VIC",
		Postcode:      "3182",
		PrivateOwners: []domain.PersonInput{{FirstName: "Omar"}},
	})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}

	done := domain.StatusCompleted
	j1, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p1.ID, Notes: "faulty battery"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, _, err := s.UpdateJob(ctx, j1.ID, domain.UpdateJob{Status: &done}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if _, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p2.ID, Notes: "annual check"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	jobs, total, err := s.ListJobs(ctx, domain.JobListQuery{Status: "completed"})
	if err != nil {
		t.Fatalf("ListJobs status: %v", err)
	}
	if total != 1 || len(jobs) != 1 || jobs[0].ID != j1.ID {
		t.Fatalf("status filter = %d jobs, total %d", len(jobs), total)
	}
	if !jobs[0].IsCompleted || jobs[0].IsCancelled {
		t.Fatalf("completion flags = %+v", jobs[0])
	}

	// Search reaches across the property relationship.
	jobs, total, err = s.ListJobs(ctx, domain.JobListQuery{Search: "beach"})
	if err != nil {
		t.Fatalf("ListJobs search: %v", err)
	}
	if total != 1 || jobs[0].PropertyID != p2.ID {
		t.Fatalf("search = total %d, property %d", total, jobs[0].PropertyID)
	}

	// Owner-type filter uses the denormalized flags.
	_, total, err = s.ListJobs(ctx, domain.JobListQuery{AgencyPrivate: "private"})
	if err != nil || total != 1 {
		t.Fatalf("agency_private filter total = %d (%v)", total, err)
	}
}

func TestJobListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedAgencyProperty(t, s, "Lygon St")

	for i := 0; i < 13; i++ {
		if _, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID}); err != nil {
			t.Fatalf("CreateJob %d: %v", i, err)
		}
	}
	jobs, total, err := s.ListJobs(ctx, domain.JobListQuery{Page: 2})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if total != 13 || len(jobs) != 3 {
		t.Fatalf("page 2 = %d of %d, want 3 of 13", len(jobs), total)
	}
}

func TestJobUpdatesAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedAgencyProperty(t, s, "Rathdowne St")

	j, err := s.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := s.AppendJobUpdate(ctx, domain.CreateJobUpdate{JobID: j.ID, Status: domain.StatusToBeScheduled, Note: "left voicemail"}, nil); err != nil {
		t.Fatalf("AppendJobUpdate: %v", err)
	}
	if _, err := s.AppendJobUpdate(ctx, domain.CreateJobUpdate{JobID: j.ID, Status: domain.StatusCompleted, Note: "replaced unit"}, nil); err != nil {
		t.Fatalf("AppendJobUpdate: %v", err)
	}
	updates, err := s.ListJobUpdates(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListJobUpdates: %v", err)
	}
	if len(updates) != 2 || updates[0].Note != "replaced unit" {
		t.Fatalf("updates = %+v, want newest first", updates)
	}
	// History never moves the job itself.
	got, _, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != domain.StatusNew {
		t.Fatalf("job status = %s, want new", got.Status)
	}

	if _, err := s.ListJobUpdates(ctx, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing job err = %v, want not found", err)
	}
}

func TestIssueTypeConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateIssueType(ctx, domain.CreateIssueType{Name: "Beeping"}); err != nil {
		t.Fatalf("CreateIssueType: %v", err)
	}
	if _, err := s.CreateIssueType(ctx, domain.CreateIssueType{Name: "beeping"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate err = %v, want conflict", err)
	}
}

func TestStaffUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "Tech@Example.com", FirstName: "Kim"})
	if err != nil {
		t.Fatalf("UpsertStaffByEmail: %v", err)
	}
	if first.Email != "tech@example.com" || first.Role != domain.RoleStaff || !first.IsActive {
		t.Fatalf("provisioned staff = %+v", first)
	}
	again, err := s.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "tech@example.com", LastName: "Ngo"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != first.ID || again.FirstName != "Kim" || again.LastName != "Ngo" {
		t.Fatalf("upsert merged = %+v", again)
	}

	off, ok, err := s.SetStaffActive(ctx, first.ID, false)
	if err != nil || !ok || off.IsActive {
		t.Fatalf("SetStaffActive = %+v %v %v", off, ok, err)
	}
}

func TestSuggestionsAndDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedAgencyProperty(t, s, "Ballantyne St")

	for _, name := range []string{"Anna", "Annabel", "Annette", "Bruno"} {
		if _, err := s.AddTenant(ctx, p.ID, domain.PersonInput{FirstName: name}); err != nil {
			t.Fatalf("AddTenant %s: %v", name, err)
		}
	}
	got, err := s.SuggestTenants(ctx, "ann", 10)
	if err != nil {
		t.Fatalf("SuggestTenants: %v", err)
	}
	if len(got) != 3 || got[0].Label != "Anna" {
		t.Fatalf("suggestions = %+v", got)
	}

	addrs, err := s.SuggestAddresses(ctx, "ballan", 10)
	if err != nil || len(addrs) != 1 {
		t.Fatalf("SuggestAddresses = %+v (%v)", addrs, err)
	}

	suburbs, err := s.DistinctSuburbs(ctx)
	if err != nil || len(suburbs) != 1 || suburbs[0] != "Carlton" {
		t.Fatalf("DistinctSuburbs = %v (%v)", suburbs, err)
	}
	codes, err := s.DistinctPostcodes(ctx)
	if err != nil || len(codes) != 1 || codes[0] != "3053" {
		t.Fatalf("DistinctPostcodes = %v (%v)", codes, err)
	}
}
