package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Project is the collaboratively edited site document. Version is bumped on
// every HTML save and checked on write so concurrent editors cannot silently
// clobber each other. EditingBy is an advisory marker surfaced in the UI, not
// a lock.
type Project struct {
	ID            string
	Name          string
	OwnerID       string
	HTMLContent   string
	IsDirty       bool
	EditingBy     string
	DeploymentURL string
	ThumbnailURL  string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Collaborator struct {
	ProjectID   string
	UserID      string
	Role        string
	DisplayName string
	AddedAt     time.Time
}

type ChatMessage struct {
	ID        int64
	ProjectID string
	Seq       int
	Role      string
	Text      string
	CreatedAt time.Time
}

type ProjectImage struct {
	ID        string
	ProjectID string
	Name      string
	URL       string
	PublicID  string
	CreatedAt time.Time
}

// Collection is a user-defined named bucket of form submissions scoped to a
// project, distinct from any database-level collection concept.
type Collection struct {
	ID        string
	ProjectID string
	Name      string
	CreatedAt time.Time
}

type Submission struct {
	ID           string
	CollectionID string
	Payload      map[string]any
	CreatedAt    time.Time
}

const (
	OrderStatusPending        = "Pending"
	OrderStatusPendingPayment = "Pending Payment"
	OrderStatusInProgress     = "In Progress"
	OrderStatusCompleted      = "Completed"
	OrderStatusCancelled      = "Cancelled"
)

// Order prices are stored in minor currency units.
type Order struct {
	ID               string
	ContactName      string
	ContactEmail     string
	ContactPhone     string
	SelectedTemplate string
	Plan             string
	EstimatedPrice   int64
	FinalPrice       *int64
	Status           string
	AppliedCoupon    string
	PaymentID        string
	Answers          map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const (
	CouponTypePercentage = "percentage"
	CouponTypeFlat       = "flat"
)

type Coupon struct {
	Code      string
	Type      string
	Value     int64
	IsActive  bool
	CreatedAt time.Time
}

type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Body      string
	CreatedAt time.Time
}
