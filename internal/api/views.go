package api

import (
	"context"

	"alarmtrack/internal/domain"
)

// The list endpoints return denormalised items so the client can render a
// row without follow-up requests. Nested records are resolved best-effort;
// a dangling reference renders as null rather than failing the list.

type staffView struct {
	ID        int64  `json:"id"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name"`
}

func toStaffView(s domain.Staff) staffView {
	return staffView{
		ID:        s.ID,
		UID:       s.UID,
		Email:     s.Email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		FullName:  s.FullName(),
	}
}

type propertyView struct {
	domain.Property
	Address       string                `json:"address"`
	Agency        *domain.Agency        `json:"agency,omitempty"`
	PrivateOwners []domain.PrivateOwner `json:"private_owners,omitempty"`
	Tenants       []domain.Tenant       `json:"tenants,omitempty"`
}

func (s *Server) toPropertyView(ctx context.Context, p domain.Property) propertyView {
	v := propertyView{Property: p, Address: p.Address()}
	if p.AgencyID != nil {
		if a, ok, err := s.store.GetAgency(ctx, *p.AgencyID); err == nil && ok {
			v.Agency = &a
		}
	}
	for _, id := range p.PrivateOwnerIDs {
		if o, ok, err := s.store.GetPrivateOwner(ctx, id); err == nil && ok {
			v.PrivateOwners = append(v.PrivateOwners, o)
		}
	}
	for _, id := range p.TenantIDs {
		if t, ok, err := s.store.GetTenant(ctx, id); err == nil && ok {
			v.Tenants = append(v.Tenants, t)
		}
	}
	return v
}

type jobView struct {
	domain.ServiceJob
	Property     *propertyView     `json:"property,omitempty"`
	IssueType    *domain.IssueType `json:"issue_type,omitempty"`
	Agency       *domain.Agency    `json:"agency,omitempty"`
	PrivateOwner *domain.Person    `json:"private_owner,omitempty"`
	Tenants      []domain.Tenant   `json:"tenants,omitempty"`
	Allocation   []staffView       `json:"allocation,omitempty"`
}

func (s *Server) toJobView(ctx context.Context, j domain.ServiceJob) jobView {
	v := jobView{ServiceJob: j}
	if p, ok, err := s.store.GetProperty(ctx, j.PropertyID); err == nil && ok {
		pv := s.toPropertyView(ctx, p)
		v.Property = &pv
		v.Agency = pv.Agency
		if len(pv.PrivateOwners) > 0 {
			v.PrivateOwner = &pv.PrivateOwners[0].Person
		}
	}
	if j.IssueTypeID != nil {
		if it, ok, err := s.store.GetIssueType(ctx, *j.IssueTypeID); err == nil && ok {
			v.IssueType = &it
		}
	}
	for _, id := range j.TenantIDs {
		if t, ok, err := s.store.GetTenant(ctx, id); err == nil && ok {
			v.Tenants = append(v.Tenants, t)
		}
	}
	for _, id := range j.AllocationIDs {
		if st, ok, err := s.store.GetStaff(ctx, id); err == nil && ok {
			v.Allocation = append(v.Allocation, toStaffView(st))
		}
	}
	return v
}

func (s *Server) toJobViews(ctx context.Context, jobs []domain.ServiceJob) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.toJobView(ctx, j))
	}
	return out
}

func (s *Server) toPropertyViews(ctx context.Context, props []domain.Property) []propertyView {
	out := make([]propertyView, 0, len(props))
	for _, p := range props {
		out = append(out, s.toPropertyView(ctx, p))
	}
	return out
}
