package domain

// JobListQuery carries the filter, search, ordering and pagination parameters
// for the job list endpoint. Zero values mean "no filter".
type JobListQuery struct {
	Search            string
	Status            string
	AllocationID      *int64
	IssueTypeID       *int64
	PropertyID        *int64
	TenantID          *int64
	AgencyPrivate     string // "agency" or "private"
	CustomerContacted *bool
	CreatedFrom       string // YYYY-MM-DD, invalid values ignored
	CreatedTo         string
	Ordering          string
	Page              int
	PageSize          int
}

// PropertyListQuery carries the parameters for the property list endpoint.
type PropertyListQuery struct {
	Search    string
	Address   string // narrower search over the street fields only
	Suburb    string
	State     string
	Postcode  string
	OwnerType string // "agency" or "private"
	IsActive  *bool
	AgencyID  *int64
	Ordering  string
	Page      int
	PageSize  int
}

// PersonListQuery covers the agency, tenant and private-owner list endpoints.
type PersonListQuery struct {
	Search   string
	IsActive *bool
	Ordering string
	Page     int
	PageSize int
}

// Page is the envelope every list endpoint returns.
type Page[T any] struct {
	Count       int     `json:"count"`
	Next        *string `json:"next"`
	Previous    *string `json:"previous"`
	Results     []T     `json:"results"`
	TotalPages  int     `json:"total_pages"`
	CurrentPage int     `json:"current_page"`
}

// Suggestion is a typeahead result.
type Suggestion struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
