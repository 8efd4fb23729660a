package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultOrder   ResultType = "order"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	OwnerID string     `json:"ownerId,omitempty"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request. FilterOwnerID scopes project hits to one
// user; admin callers leave it empty.
type Query struct {
	Text          string
	FilterType    ResultType
	FilterOwnerID string
	FilterStatus  string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// OrderRecord is the data we index for an order.
type OrderRecord struct {
	ID           string `json:"id"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	Template     string `json:"template"`
	Plan         string `json:"plan"`
	Status       string `json:"status"`
}
