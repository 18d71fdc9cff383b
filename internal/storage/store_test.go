package storage

import (
	"context"
	"errors"
	"testing"

	"alarmtrack/internal/domain"
)

func seedAgency(t *testing.T, m *MemoryStore, name string) domain.Agency {
	t.Helper()
	a, err := m.CreateAgency(context.Background(), domain.CreateAgency{Name: name})
	if err != nil {
		t.Fatalf("create agency: %v", err)
	}
	return a
}

func seedProperty(t *testing.T, m *MemoryStore, street, number, suburb string, agencyID *int64) domain.Property {
	t.Helper()
	in := domain.CreateProperty{
		StreetNumber: number,
		StreetName:   street,
		Suburb:       suburb,
		State:        "QLD",
		Postcode:     "4000",
		AgencyID:     agencyID,
	}
	if agencyID == nil {
		in.PrivateOwners = []domain.PersonInput{{FirstName: "Owen", LastName: "Owner"}}
	}
	p, err := m.CreateProperty(context.Background(), in)
	if err != nil {
		t.Fatalf("create property: %v", err)
	}
	return p
}

func TestCreatePropertyOwnershipRules(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")

	_, err := m.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber: "10", StreetName: "Queen Street", Suburb: "Brisbane", State: "QLD", Postcode: "4000",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ownerless property should be rejected, got %v", err)
	}

	_, err = m.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber: "10", StreetName: "Queen Street", Suburb: "Brisbane", State: "QLD", Postcode: "4000",
		AgencyID:      &ag.ID,
		PrivateOwners: []domain.PersonInput{{FirstName: "Pat"}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("dual ownership should be rejected, got %v", err)
	}

	_, err = m.CreateProperty(ctx, domain.CreateProperty{
		StreetNumber: "10", StreetName: "Queen Street", Suburb: "Brisbane", State: "QLD", Postcode: "4000",
		AgencyID: &ag.ID,
	})
	if err != nil {
		t.Fatalf("agency-owned property should create: %v", err)
	}

	var fe *FieldError
	_, err = m.CreateProperty(ctx, domain.CreateProperty{StreetName: "Queen Street", AgencyID: &ag.ID})
	if !errors.As(err, &fe) || fe.Field != "street_number" {
		t.Fatalf("missing street number should be field-keyed, got %v", err)
	}
}

func TestOwnershipSwapReleasesOwners(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)
	ownerID := p.PrivateOwnerIDs[0]

	got, found, err := m.SetPropertyAgency(ctx, p.ID, &ag.ID)
	if err != nil || !found {
		t.Fatalf("set agency: %v %v", found, err)
	}
	if got.AgencyID == nil || len(got.PrivateOwnerIDs) != 0 {
		t.Fatalf("swap should clear private owners: %+v", got)
	}
	if _, ok := m.owners[ownerID]; ok {
		t.Fatalf("orphaned owner should be deleted")
	}

	// Reverting without owners violates the invariant.
	_, _, err = m.SetPropertyAgency(ctx, p.ID, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ownerless revert should fail, got %v", err)
	}
}

func TestRemoveLastPrivateOwnerRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)

	_, err := m.RemovePrivateOwner(ctx, p.ID, p.PrivateOwnerIDs[0])
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("removing the only owner should fail, got %v", err)
	}

	second, err := m.AddPrivateOwner(ctx, p.ID, domain.PersonInput{FirstName: "Second"})
	if err != nil {
		t.Fatalf("add owner: %v", err)
	}
	ok, err := m.RemovePrivateOwner(ctx, p.ID, second.ID)
	if err != nil || !ok {
		t.Fatalf("removing one of two owners should work: %v %v", ok, err)
	}
	if _, exists := m.owners[second.ID]; exists {
		t.Fatalf("removed owner with no other links should be deleted")
	}
}

func TestTenantOrphanCleanup(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)

	tn, err := m.AddTenant(ctx, p.ID, domain.PersonInput{FirstName: "Tina", LastName: "Tenant"})
	if err != nil {
		t.Fatalf("add tenant: %v", err)
	}
	j, err := m.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if len(j.TenantIDs) != 1 || j.TenantIDs[0] != tn.ID {
		t.Fatalf("job should snapshot property tenants: %+v", j.TenantIDs)
	}

	ok, err := m.RemoveTenant(ctx, p.ID, tn.ID)
	if err != nil || !ok {
		t.Fatalf("remove tenant: %v %v", ok, err)
	}
	if _, exists := m.tenants[tn.ID]; exists {
		t.Fatalf("tenant with no remaining links should be deleted")
	}
	j2, _, _ := m.GetJob(ctx, j.ID)
	if len(j2.TenantIDs) != 0 {
		t.Fatalf("deleted tenant should be dropped from job snapshots: %+v", j2.TenantIDs)
	}
}

func TestJobCompletionFlagsExclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)

	j, err := m.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if j.Status != domain.StatusNew || j.IsCompleted || j.IsCancelled {
		t.Fatalf("new job flags wrong: %+v", j)
	}
	if !j.IsPrivateOwner || j.IsAgency {
		t.Fatalf("ownership flags should mirror the property: %+v", j)
	}

	done := domain.StatusCompleted
	j, _, err = m.UpdateJob(ctx, j.ID, domain.UpdateJob{Status: &done})
	if err != nil || !j.IsCompleted || j.IsCancelled {
		t.Fatalf("completed flags wrong: %+v %v", j, err)
	}
	cancelled := domain.StatusCancelled
	j, _, err = m.UpdateJob(ctx, j.ID, domain.UpdateJob{Status: &cancelled})
	if err != nil || j.IsCompleted || !j.IsCancelled {
		t.Fatalf("cancelled flags wrong: %+v %v", j, err)
	}

	bogus := domain.JobStatus("paused")
	if _, _, err = m.UpdateJob(ctx, j.ID, domain.UpdateJob{Status: &bogus}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status should fail validation, got %v", err)
	}
}

func TestListJobsSearchAndFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")
	queen := seedProperty(t, m, "Queen Street", "10", "Brisbane", &ag.ID)
	ann := seedProperty(t, m, "Ann Street", "22", "Fortitude Valley", nil)

	alice, err := m.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "alice@example.com", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("upsert staff: %v", err)
	}

	j1, _ := m.CreateJob(ctx, domain.CreateJob{PropertyID: queen.ID, Notes: "sensor fault", AllocationIDs: []int64{alice.ID}})
	j2, _ := m.CreateJob(ctx, domain.CreateJob{PropertyID: ann.ID, Notes: "low battery"})
	done := domain.StatusCompleted
	if _, _, err := m.UpdateJob(ctx, j2.ID, domain.UpdateJob{Status: &done}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Terms may match across fields: "queen" on the property, "alice" on the
	// allocated user.
	got, total, err := m.ListJobs(ctx, domain.JobListQuery{Search: "queen alice", Page: 1, PageSize: 10})
	if err != nil || total != 1 || got[0].ID != j1.ID {
		t.Fatalf("search: total=%d err=%v", total, err)
	}

	got, total, _ = m.ListJobs(ctx, domain.JobListQuery{Status: "completed", Page: 1, PageSize: 10})
	if total != 1 || got[0].ID != j2.ID {
		t.Fatalf("status filter: total=%d", total)
	}

	got, total, _ = m.ListJobs(ctx, domain.JobListQuery{AgencyPrivate: "agency", Page: 1, PageSize: 10})
	if total != 1 || got[0].ID != j1.ID {
		t.Fatalf("agency_private filter: total=%d", total)
	}

	// Malformed dates are ignored, not errors.
	_, total, err = m.ListJobs(ctx, domain.JobListQuery{CreatedFrom: "junk", CreatedTo: "2026-13-99", Page: 1, PageSize: 10})
	if err != nil || total != 2 {
		t.Fatalf("bad dates should be ignored: total=%d err=%v", total, err)
	}

	_, total, _ = m.ListJobs(ctx, domain.JobListQuery{CreatedFrom: "2099-01-01", Page: 1, PageSize: 10})
	if total != 0 {
		t.Fatalf("future from-bound should match nothing: %d", total)
	}
}

func TestListJobsOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")
	pa := seedProperty(t, m, "Ann Street", "2", "Brisbane", &ag.ID)
	pb := seedProperty(t, m, "Boundary Road", "1", "Brisbane", &ag.ID)

	ja, _ := m.CreateJob(ctx, domain.CreateJob{PropertyID: pa.ID})
	jb, _ := m.CreateJob(ctx, domain.CreateJob{PropertyID: pb.ID})

	got, _, err := m.ListJobs(ctx, domain.JobListQuery{Ordering: "property", Page: 1, PageSize: 10})
	if err != nil || len(got) != 2 {
		t.Fatalf("list: %v", err)
	}
	if got[0].ID != ja.ID || got[1].ID != jb.ID {
		t.Fatalf("property ordering wrong: %d %d", got[0].ID, got[1].ID)
	}
	got, _, _ = m.ListJobs(ctx, domain.JobListQuery{Ordering: "-property", Page: 1, PageSize: 10})
	if got[0].ID != jb.ID {
		t.Fatalf("descending property ordering wrong")
	}

	// Default ordering is newest first.
	got, _, _ = m.ListJobs(ctx, domain.JobListQuery{Page: 1, PageSize: 10})
	if got[0].ID != jb.ID && got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Fatalf("default ordering should be -created_at")
	}

	// Window past the end is empty but total stays.
	got, total, _ := m.ListJobs(ctx, domain.JobListQuery{Page: 5, PageSize: 10})
	if len(got) != 0 || total != 2 {
		t.Fatalf("past-end page: len=%d total=%d", len(got), total)
	}
}

func TestJobUpdatesAppendOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)
	j, _ := m.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID})

	author, _ := m.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "tech@example.com"})
	u1, err := m.AppendJobUpdate(ctx, domain.CreateJobUpdate{JobID: j.ID, Status: domain.StatusToBeScheduled, Note: "booked"}, &author.ID)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := m.AppendJobUpdate(ctx, domain.CreateJobUpdate{JobID: j.ID, Status: domain.StatusCompleted}, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	updates, err := m.ListJobUpdates(ctx, j.ID)
	if err != nil || len(updates) != 2 {
		t.Fatalf("list updates: %v", err)
	}
	// Newest first.
	if updates[1].ID != u1.ID {
		t.Fatalf("updates should come back newest first: %+v", updates)
	}
	if updates[1].AuthorID == nil || *updates[1].AuthorID != author.ID {
		t.Fatalf("author not recorded")
	}

	if _, err := m.AppendJobUpdate(ctx, domain.CreateJobUpdate{JobID: 999, Status: domain.StatusNew}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job should be not found, got %v", err)
	}
}

func TestFindPropertyByAddressCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)

	_, found, err := m.FindPropertyByAddress(ctx, "", "10", "QUEEN street", "brisbane")
	if err != nil || !found {
		t.Fatalf("duplicate lookup should match case-insensitively: %v %v", found, err)
	}
	_, found, _ = m.FindPropertyByAddress(ctx, "2", "10", "Queen Street", "Brisbane")
	if found {
		t.Fatalf("different unit is a different address")
	}
}

func TestDeletePropertyGuards(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	p := seedProperty(t, m, "Queen Street", "10", "Brisbane", nil)
	if _, err := m.CreateJob(ctx, domain.CreateJob{PropertyID: p.ID}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := m.DeleteProperty(ctx, p.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("property with jobs should refuse deletion, got %v", err)
	}
}

func TestSuggestionsCapAndDedup(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")
	for i := 0; i < 15; i++ {
		seedProperty(t, m, "Queen Street", string(rune('A'+i)), "Brisbane", &ag.ID)
	}

	got, err := m.SuggestProperties(ctx, "queen", 10)
	if err != nil || len(got) != 10 {
		t.Fatalf("suggestions should cap at 10: %d %v", len(got), err)
	}

	addrs, _ := m.SuggestAddresses(ctx, "queen", 10)
	seen := map[string]bool{}
	for _, s := range addrs {
		if seen[s.Value] {
			t.Fatalf("duplicate address suggestion %q", s.Value)
		}
		seen[s.Value] = true
	}
}

func TestDistinctSuburbs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ag := seedAgency(t, m, "Ray Realty")
	seedProperty(t, m, "Queen Street", "10", "Brisbane", &ag.ID)
	seedProperty(t, m, "Ann Street", "1", "Brisbane", &ag.ID)
	seedProperty(t, m, "Beach Road", "7", "Cairns", &ag.ID)

	got, err := m.DistinctSuburbs(ctx)
	if err != nil || len(got) != 2 || got[0] != "Brisbane" || got[1] != "Cairns" {
		t.Fatalf("distinct suburbs: %v %v", got, err)
	}
}

func TestUpsertStaffByEmail(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s1, err := m.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "Tech@Example.com", FirstName: "Terry"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if s1.Email != "tech@example.com" || s1.Role != domain.RoleStaff || !s1.IsActive {
		t.Fatalf("defaults wrong: %+v", s1)
	}

	s2, err := m.UpsertStaffByEmail(ctx, domain.StaffInput{Email: "tech@example.com", LastName: "Tester"})
	if err != nil || s2.ID != s1.ID {
		t.Fatalf("second upsert should reuse the record: %+v %v", s2, err)
	}
	if s2.FirstName != "Terry" || s2.LastName != "Tester" {
		t.Fatalf("profile refresh wrong: %+v", s2)
	}
}
