package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sitesmith/api/internal/auth"
	"sitesmith/api/internal/authpw"
	"sitesmith/api/internal/checkout"
	"sitesmith/api/internal/compose"
	"sitesmith/api/internal/config"
	"sitesmith/api/internal/generate"
	"sitesmith/api/internal/history"
	"sitesmith/api/internal/live"
	"sitesmith/api/internal/payment"
	"sitesmith/api/internal/rbac"
	"sitesmith/api/internal/search"
	"sitesmith/api/internal/store"
	"sitesmith/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	Verified     bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	CreateUser(ctx context.Context, user store.User) error

	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertProject(ctx context.Context, project store.Project) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]store.Project, error)
	RenameProject(ctx context.Context, projectID, name string) error
	DeleteProject(ctx context.Context, projectID string) error
	UpdateProjectHTML(ctx context.Context, projectID, html string, isDirty bool, expectedVersion int64) (int64, bool, error)
	ForceProjectHTML(ctx context.Context, projectID, html string, isDirty bool) (int64, error)
	SetEditingMarker(ctx context.Context, projectID, userID string) (bool, error)
	ClearEditingMarker(ctx context.Context, projectID, userID string) error
	SetDeploymentURL(ctx context.Context, projectID, url string) error
	SetThumbnailURL(ctx context.Context, projectID, url string) error
	GetProjectRole(ctx context.Context, projectID, userID string) (string, error)

	UpsertCollaborator(ctx context.Context, c store.Collaborator) error
	RemoveCollaborator(ctx context.Context, projectID, userID string) error
	ListCollaborators(ctx context.Context, projectID string) ([]store.Collaborator, error)

	AppendChatMessage(ctx context.Context, projectID, role, text string) (store.ChatMessage, error)
	ListChatMessages(ctx context.Context, projectID string) ([]store.ChatMessage, error)

	InsertProjectImage(ctx context.Context, image store.ProjectImage) error
	ListProjectImages(ctx context.Context, projectID string) ([]store.ProjectImage, error)
	DeleteProjectImage(ctx context.Context, projectID, imageID string) error

	InsertCollection(ctx context.Context, collection store.Collection) error
	ListCollections(ctx context.Context, projectID string) ([]store.Collection, error)
	GetCollection(ctx context.Context, collectionID string) (store.Collection, error)
	DeleteCollection(ctx context.Context, projectID, collectionID string) error
	InsertSubmission(ctx context.Context, submission store.Submission) error
	ListSubmissions(ctx context.Context, collectionID string) ([]store.Submission, error)

	GetOrder(ctx context.Context, orderID string) (store.Order, error)
	ListOrders(ctx context.Context, status string) ([]store.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	AttachPayment(ctx context.Context, orderID, paymentID string, finalPrice int64) error

	UpsertCoupon(ctx context.Context, coupon store.Coupon) error
	GetCoupon(ctx context.Context, code string) (store.Coupon, error)
	ListCoupons(ctx context.Context) ([]store.Coupon, error)
	SetCouponActive(ctx context.Context, code string, active bool) error
	DeleteCoupon(ctx context.Context, code string) error

	InsertContactMessage(ctx context.Context, msg store.ContactMessage) error
	ListContactMessages(ctx context.Context) ([]store.ContactMessage, error)
}

// refreshStore holds refresh sessions. Backed by Redis in the normal setup,
// by Postgres when Redis is not configured.
type refreshStore interface {
	Save(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (store.User, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type eventBus interface {
	Publish(ctx context.Context, event live.Event) error
	Subscribe(projectID string) (<-chan live.Event, func())
}

type generator interface {
	Run(ctx context.Context, projectID, userID, prompt string, substitutions map[string]string) generate.Result
}

type paymentGateway interface {
	IsConfigured() bool
	CreateIntent(ctx context.Context, handoff checkout.Handoff) (payment.Intent, error)
	Verify(ctx context.Context, intentID, orderID string, amount int64) error
}

type assetStore interface {
	Enabled() bool
	Upload(ctx context.Context, projectID, filename string, reader io.Reader, size int64, contentType string) (string, string, error)
	Delete(ctx context.Context, publicID string) error
}

type deployer interface {
	Enabled() bool
	Deploy(ctx context.Context, siteName, htmlContent string) (string, error)
}

type historyStore interface {
	Snapshot(projectID, html, author, message string) (history.Revision, error)
	List(projectID string, limit int) ([]history.Revision, error)
	Document(projectID, hash string) (string, error)
	Delete(projectID string) error
}

type thumbnailer interface {
	Available() bool
	Render(ctx context.Context, html string) ([]byte, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexProject(p search.ProjectRecord)
	IndexOrder(o search.OrderRecord)
	DeleteProject(id string)
	ReindexAllFromPG(ctx context.Context)
}

type mailer interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendOrderConfirmationEmail(to, contactName, orderID, plan, amount, status string) error
}

// Deps carries the service's collaborators. Payments, Assets, Deploy,
// Preview, Search, Email, and Generate may be nil when their backing vendor
// is not configured; the matching endpoints answer 503.
type Deps struct {
	Store    dataStore
	Sessions refreshStore
	Hub      eventBus
	AuthPW   *authpw.Service
	Checkout *checkout.Service
	Generate generator
	Payments paymentGateway
	Assets   assetStore
	Deploy   deployer
	History  historyStore
	Preview  thumbnailer
	Search   searchIndex
	Email    mailer
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	hub      eventBus
	authpw   *authpw.Service
	checkout *checkout.Service
	generate generator
	payments paymentGateway
	assets   assetStore
	deploy   deployer
	history  historyStore
	preview  thumbnailer
	search   searchIndex
	email    mailer
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		hub:      deps.Hub,
		authpw:   deps.AuthPW,
		checkout: deps.Checkout,
		generate: deps.Generate,
		payments: deps.Payments,
		assets:   deps.Assets,
		deploy:   deps.Deploy,
		history:  deps.History,
		preview:  deps.Preview,
		search:   deps.Search,
		email:    deps.Email,
	}
}

// PostgresRefreshStore adapts the relational store to refreshStore for
// deployments without Redis.
type PostgresRefreshStore struct {
	store *store.PostgresStore
}

func NewPostgresRefreshStore(st *store.PostgresStore) *PostgresRefreshStore {
	return &PostgresRefreshStore{store: st}
}

func (p *PostgresRefreshStore) Save(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (p *PostgresRefreshStore) Lookup(ctx context.Context, tokenHash string) (store.User, error) {
	return p.store.LookupRefreshSession(ctx, tokenHash)
}

func (p *PostgresRefreshStore) Revoke(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// Bootstrap seeds a development admin account and a demo coupon on an empty
// database, then warms the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("sitesmith-admin"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := store.User{
			ID:              util.NewID("usr"),
			DisplayName:     "Admin",
			Email:           "admin@sitesmith.local",
			PasswordHash:    string(hash),
			Role:            rbac.AccountAdmin,
			IsEmailVerified: true,
		}
		if err := s.store.CreateUser(ctx, admin); err != nil {
			return err
		}
		if err := s.store.UpsertCoupon(ctx, store.Coupon{
			Code:     "WELCOME10",
			Type:     store.CouponTypePercentage,
			Value:    10,
			IsActive: true,
		}); err != nil {
			return err
		}
		log.Printf("app: seeded admin account admin@sitesmith.local")
	}
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

// CreateSession issues an access token and refresh token for a user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:      user.ID,
		Name:     user.DisplayName,
		Email:    user.Email,
		Role:     user.Role,
		Verified: user.IsEmailVerified,
		JTI:      jti,
		Exp:      expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		Verified:     user.IsEmailVerified,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		Verified:  user.IsEmailVerified,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SendVerificationMail mails the verification link, or logs when mail is off.
func (s *Service) SendVerificationMail(email, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicBaseURL + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(email, userName, url); err != nil {
			log.Printf("app: verification email to %s: %v", email, err)
		}
	}()
}

func (s *Service) SendPasswordResetMail(email, userName, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	url := s.cfg.PublicBaseURL + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(email, userName, url); err != nil {
			log.Printf("app: password reset email to %s: %v", email, err)
		}
	}()
}

// requireProject loads the project and checks the session's project role
// against the requested action.
func (s *Service) requireProject(ctx context.Context, session Session, projectID string, action rbac.Action) (store.Project, rbac.Role, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, "", err
	}
	roleName, err := s.store.GetProjectRole(ctx, projectID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, "", domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
		return store.Project{}, "", err
	}
	role := rbac.Normalize(roleName)
	if !rbac.Can(role, action) {
		return store.Project{}, "", domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return project, role, nil
}

func projectToMap(p store.Project, role rbac.Role) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"ownerId":       p.OwnerID,
		"htmlContent":   p.HTMLContent,
		"isDirty":       p.IsDirty,
		"editingBy":     p.EditingBy,
		"deploymentUrl": p.DeploymentURL,
		"thumbnailUrl":  p.ThumbnailURL,
		"version":       p.Version,
		"role":          string(role),
		"createdAt":     p.CreatedAt.Format(time.RFC3339),
		"updatedAt":     p.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Service) CreateProject(ctx context.Context, session Session, name string) (map[string]any, error) {
	projectName := strings.TrimSpace(name)
	if projectName == "" {
		projectName = "Untitled Site"
	}
	project := store.Project{
		ID:      util.NewID("prj"),
		Name:    projectName,
		OwnerID: session.UserID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: project.ID, Name: project.Name, OwnerID: project.OwnerID})
	}
	return projectToMap(project, rbac.RoleOwner), nil
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]map[string]any, error) {
	projects, err := s.store.ListProjectsByUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		roleName, err := s.store.GetProjectRole(ctx, project.ID, session.UserID)
		if err != nil {
			return nil, err
		}
		item := projectToMap(project, rbac.Normalize(roleName))
		delete(item, "htmlContent")
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, role, err := s.requireProject(ctx, session, projectID, rbac.ActionView)
	if err != nil {
		return nil, err
	}
	return projectToMap(project, role), nil
}

func (s *Service) RenameProject(ctx context.Context, session Session, projectID, name string) (map[string]any, error) {
	project, role, err := s.requireProject(ctx, session, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	newName := strings.TrimSpace(name)
	if newName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.RenameProject(ctx, projectID, newName); err != nil {
		return nil, err
	}
	project.Name = newName
	s.publish(ctx, live.Event{Type: live.EventProjectRenamed, ProjectID: projectID, Payload: rawJSON(map[string]any{"name": newName})})
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: project.ID, Name: newName, OwnerID: project.OwnerID})
	}
	return projectToMap(project, role), nil
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionManage); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.Delete(projectID); err != nil {
			log.Printf("app: delete history for %s: %v", projectID, err)
		}
	}
	if s.search != nil {
		s.search.DeleteProject(projectID)
	}
	s.publish(ctx, live.Event{Type: live.EventProjectDeleted, ProjectID: projectID})
	return nil
}

// SaveProjectHTML persists an edited document if the caller's base version is
// still current. A stale base version is a conflict; the caller reloads and
// reapplies.
func (s *Service) SaveProjectHTML(ctx context.Context, session Session, projectID, html string, baseVersion int64) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	newVersion, ok, err := s.store.UpdateProjectHTML(ctx, projectID, html, true, baseVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return nil, domainError(http.StatusConflict, "VERSION_CONFLICT", "Document changed since it was loaded", map[string]any{
			"currentVersion": current.Version,
		})
	}
	if s.history != nil {
		if _, err := s.history.Snapshot(projectID, html, session.UserName, "Save site"); err != nil {
			log.Printf("app: history snapshot for %s: %v", projectID, err)
		}
	}
	s.publish(ctx, live.Event{
		Type:      live.EventProjectSaved,
		ProjectID: projectID,
		Version:   newVersion,
		Payload:   rawJSON(map[string]any{"html": html, "savedBy": session.UserID}),
	})
	s.refreshThumbnail(projectID, html)
	return map[string]any{"version": newVersion}, nil
}

// SetEditing claims or releases the advisory editing marker. Claiming a
// marker someone else holds fails softly; the UI shows who has it.
func (s *Service) SetEditing(ctx context.Context, session Session, projectID string, editing bool) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	claimed := true
	if editing {
		ok, err := s.store.SetEditingMarker(ctx, projectID, session.UserID)
		if err != nil {
			return nil, err
		}
		claimed = ok
	} else {
		if err := s.store.ClearEditingMarker(ctx, projectID, session.UserID); err != nil {
			return nil, err
		}
	}
	if claimed {
		s.publish(ctx, live.Event{
			Type:      live.EventEditingMarker,
			ProjectID: projectID,
			Payload:   rawJSON(map[string]any{"userId": session.UserID, "editing": editing}),
		})
	}
	return map[string]any{"editing": editing, "claimed": claimed}, nil
}

func (s *Service) ListCollaborators(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	collaborators, err := s.store.ListCollaborators(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(collaborators))
	for _, c := range collaborators {
		items = append(items, map[string]any{
			"userId":      c.UserID,
			"role":        c.Role,
			"displayName": c.DisplayName,
			"addedAt":     c.AddedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

func (s *Service) AddCollaborator(ctx context.Context, session Session, projectID, email, role string) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, session, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	collaboratorRole := rbac.Normalize(role)
	if collaboratorRole == rbac.RoleOwner {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be viewer or editor", nil)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "USER_NOT_FOUND", "No account with that email", nil)
		}
		return nil, err
	}
	if user.ID == project.OwnerID {
		return nil, domainError(http.StatusConflict, "ALREADY_OWNER", "That user owns this project", nil)
	}
	if err := s.store.UpsertCollaborator(ctx, store.Collaborator{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      string(collaboratorRole),
	}); err != nil {
		return nil, err
	}
	return map[string]any{"userId": user.ID, "displayName": user.DisplayName, "role": string(collaboratorRole)}, nil
}

func (s *Service) RemoveCollaborator(ctx context.Context, session Session, projectID, userID string) error {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionManage); err != nil {
		return err
	}
	return s.store.RemoveCollaborator(ctx, projectID, userID)
}

func (s *Service) ListChat(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	messages, err := s.store.ListChatMessages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, chatToMap(m))
	}
	return items, nil
}

func chatToMap(m store.ChatMessage) map[string]any {
	return map[string]any{
		"seq":       m.Seq,
		"role":      m.Role,
		"text":      m.Text,
		"createdAt": m.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Service) AppendChat(ctx context.Context, session Session, projectID, text string) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionChat); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	message, err := s.store.AppendChatMessage(ctx, projectID, "user", trimmed)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, live.Event{
		Type:      live.EventChatAppended,
		ProjectID: projectID,
		Payload:   rawJSON(chatToMap(message)),
	})
	return chatToMap(message), nil
}

// SuggestMentions resolves the @/# trigger under the cursor into candidate
// images and collections.
func (s *Service) SuggestMentions(ctx context.Context, session Session, projectID, text string, cursor int) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionChat); err != nil {
		return nil, err
	}
	trigger, ok := compose.DetectTrigger(text, cursor)
	if !ok {
		return map[string]any{"active": false, "suggestions": []compose.Mention{}}, nil
	}
	images, err := s.store.ListProjectImages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	collections, err := s.store.ListCollections(ctx, projectID)
	if err != nil {
		return nil, err
	}
	suggestions := compose.Suggest(trigger, images, collections)
	return map[string]any{
		"active":      true,
		"trigger":     map[string]any{"type": string(trigger.Type), "query": trigger.Query, "start": trigger.Start, "end": trigger.End},
		"suggestions": suggestions,
	}, nil
}

// Generate runs one AI build for the project. The user's message goes into
// chat history up front; progress and the outcome reach editors over the
// live channel while the HTTP response carries the final result.
func (s *Service) Generate(ctx context.Context, session Session, projectID, text string, mentions []compose.Mention) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	if s.generate == nil {
		return nil, domainError(http.StatusServiceUnavailable, "GENERATION_DISABLED", "Generation is not configured", nil)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}

	message, err := s.store.AppendChatMessage(ctx, projectID, "user", trimmed)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, live.Event{Type: live.EventChatAppended, ProjectID: projectID, Payload: rawJSON(chatToMap(message))})

	prompt := compose.BuildPrompt(trimmed, mentions)
	result := s.generate.Run(ctx, projectID, session.UserID, prompt, nil)

	if result.State == generate.StateDone && result.HTML != "" {
		if s.history != nil {
			if _, err := s.history.Snapshot(projectID, result.HTML, session.UserName, "AI build: "+truncate(trimmed, 60)); err != nil {
				log.Printf("app: history snapshot for %s: %v", projectID, err)
			}
		}
		s.refreshThumbnail(projectID, result.HTML)
	}

	return map[string]any{
		"state":   result.State,
		"version": result.Version,
		"error":   result.Error,
	}, nil
}

func (s *Service) UploadImage(ctx context.Context, session Session, projectID, name, filename string, reader io.Reader, size int64, contentType string) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	if s.assets == nil || !s.assets.Enabled() {
		return nil, domainError(http.StatusServiceUnavailable, "ASSETS_DISABLED", "Asset storage is not configured", nil)
	}
	url, publicID, err := s.assets.Upload(ctx, projectID, filename, reader, size, contentType)
	if err != nil {
		return nil, err
	}
	imageName := strings.TrimSpace(name)
	if imageName == "" {
		imageName = strings.TrimSuffix(filename, pathExt(filename))
	}
	image := store.ProjectImage{
		ID:        util.NewID("img"),
		ProjectID: projectID,
		Name:      imageName,
		URL:       url,
		PublicID:  publicID,
	}
	if err := s.store.InsertProjectImage(ctx, image); err != nil {
		return nil, err
	}
	item := imageToMap(image)
	s.publish(ctx, live.Event{Type: live.EventImageAdded, ProjectID: projectID, Payload: rawJSON(item)})
	return item, nil
}

func imageToMap(image store.ProjectImage) map[string]any {
	return map[string]any{
		"id":       image.ID,
		"name":     image.Name,
		"url":      image.URL,
		"publicId": image.PublicID,
	}
}

func (s *Service) ListImages(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	images, err := s.store.ListProjectImages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(images))
	for _, image := range images {
		items = append(items, imageToMap(image))
	}
	return items, nil
}

func (s *Service) DeleteImage(ctx context.Context, session Session, projectID, imageID string) error {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return err
	}
	images, err := s.store.ListProjectImages(ctx, projectID)
	if err != nil {
		return err
	}
	publicID := ""
	for _, image := range images {
		if image.ID == imageID {
			publicID = image.PublicID
			break
		}
	}
	if err := s.store.DeleteProjectImage(ctx, projectID, imageID); err != nil {
		return err
	}
	if publicID != "" && s.assets != nil && s.assets.Enabled() {
		if err := s.assets.Delete(ctx, publicID); err != nil {
			log.Printf("app: delete asset %s: %v", publicID, err)
		}
	}
	return nil
}

func (s *Service) CreateCollection(ctx context.Context, session Session, projectID, name string) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	collectionName := strings.TrimSpace(name)
	if collectionName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	collection := store.Collection{
		ID:        util.NewID("col"),
		ProjectID: projectID,
		Name:      collectionName,
	}
	if err := s.store.InsertCollection(ctx, collection); err != nil {
		return nil, err
	}
	return map[string]any{"id": collection.ID, "name": collection.Name}, nil
}

func (s *Service) ListCollections(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	collections, err := s.store.ListCollections(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(collections))
	for _, c := range collections {
		items = append(items, map[string]any{"id": c.ID, "name": c.Name, "createdAt": c.CreatedAt.Format(time.RFC3339)})
	}
	return items, nil
}

func (s *Service) DeleteCollection(ctx context.Context, session Session, projectID, collectionID string) error {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return err
	}
	return s.store.DeleteCollection(ctx, projectID, collectionID)
}

func (s *Service) ListSubmissions(ctx context.Context, session Session, projectID, collectionID string) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if collection.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	submissions, err := s.store.ListSubmissions(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(submissions))
	for _, sub := range submissions {
		items = append(items, map[string]any{
			"id":        sub.ID,
			"payload":   sub.Payload,
			"createdAt": sub.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// SubmitToCollection records a schemaless form submission from a deployed
// site. No authentication; the collection id is the capability.
func (s *Service) SubmitToCollection(ctx context.Context, collectionID string, payload map[string]any) (map[string]any, error) {
	if _, err := s.store.GetCollection(ctx, collectionID); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "payload is required", nil)
	}
	submission := store.Submission{
		ID:           util.NewID("sub"),
		CollectionID: collectionID,
		Payload:      payload,
	}
	if err := s.store.InsertSubmission(ctx, submission); err != nil {
		return nil, err
	}
	return map[string]any{"id": submission.ID}, nil
}

func (s *Service) ProjectHistory(ctx context.Context, session Session, projectID string, limit int) ([]map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []map[string]any{}, nil
	}
	revisions, err := s.history.List(projectID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, rev := range revisions {
		items = append(items, map[string]any{
			"hash":      rev.Hash,
			"message":   rev.Message,
			"author":    rev.Author,
			"createdAt": rev.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

func (s *Service) ProjectRevision(ctx context.Context, session Session, projectID, hash string) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, sql.ErrNoRows
	}
	html, err := s.history.Document(projectID, hash)
	if err != nil {
		return nil, err
	}
	return map[string]any{"hash": hash, "html": html}, nil
}

// RestoreRevision makes a historical document current. The restore itself
// becomes a new revision and a new project version.
func (s *Service) RestoreRevision(ctx context.Context, session Session, projectID, hash string) (map[string]any, error) {
	if _, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, sql.ErrNoRows
	}
	html, err := s.history.Document(projectID, hash)
	if err != nil {
		return nil, err
	}
	version, err := s.store.ForceProjectHTML(ctx, projectID, html, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.history.Snapshot(projectID, html, session.UserName, "Restore "+hash); err != nil {
		log.Printf("app: history snapshot for %s: %v", projectID, err)
	}
	s.publish(ctx, live.Event{
		Type:      live.EventProjectSaved,
		ProjectID: projectID,
		Version:   version,
		Payload:   rawJSON(map[string]any{"html": html, "savedBy": session.UserID, "restoredFrom": hash}),
	})
	s.refreshThumbnail(projectID, html)
	return map[string]any{"version": version}, nil
}

// DeployProject pushes the current document to the deployment webhook and
// records the returned public URL.
func (s *Service) DeployProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, session, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	if s.deploy == nil || !s.deploy.Enabled() {
		return nil, domainError(http.StatusServiceUnavailable, "DEPLOY_DISABLED", "Deployment is not configured", nil)
	}
	if strings.TrimSpace(project.HTMLContent) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "project has no document to deploy", nil)
	}
	url, err := s.deploy.Deploy(ctx, slugify(project.Name)+"-"+shortID(project.ID), project.HTMLContent)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "DEPLOY_FAILED", err.Error(), nil)
	}
	if err := s.store.SetDeploymentURL(ctx, projectID, url); err != nil {
		return nil, err
	}
	s.publish(ctx, live.Event{Type: live.EventDeployFinished, ProjectID: projectID, Payload: rawJSON(map[string]any{"url": url})})
	return map[string]any{"url": url}, nil
}

// RefreshThumbnail re-renders the dashboard thumbnail on demand.
func (s *Service) RefreshThumbnail(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, _, err := s.requireProject(ctx, session, projectID, rbac.ActionEdit)
	if err != nil {
		return nil, err
	}
	if s.preview == nil || !s.preview.Available() || s.assets == nil || !s.assets.Enabled() {
		return nil, domainError(http.StatusServiceUnavailable, "THUMBNAILS_DISABLED", "Thumbnail rendering is not available", nil)
	}
	url, err := s.renderAndStoreThumbnail(ctx, projectID, project.HTMLContent)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thumbnailUrl": url}, nil
}

// refreshThumbnail is the fire-and-forget variant used after saves.
func (s *Service) refreshThumbnail(projectID, html string) {
	if s.preview == nil || !s.preview.Available() || s.assets == nil || !s.assets.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if _, err := s.renderAndStoreThumbnail(ctx, projectID, html); err != nil {
			log.Printf("app: thumbnail for %s: %v", projectID, err)
		}
	}()
}

func (s *Service) renderAndStoreThumbnail(ctx context.Context, projectID, html string) (string, error) {
	png, err := s.preview.Render(ctx, html)
	if err != nil {
		return "", err
	}
	url, _, err := s.assets.Upload(ctx, projectID, "thumbnail.png", bytes.NewReader(png), int64(len(png)), "image/png")
	if err != nil {
		return "", err
	}
	if err := s.store.SetThumbnailURL(ctx, projectID, url); err != nil {
		return "", err
	}
	return url, nil
}

// QuizQuestions returns the checkout wizard definition for a plan.
func (s *Service) QuizQuestions(plan string) map[string]any {
	p := checkout.PlanByName(plan)
	return map[string]any{
		"plan":      p,
		"questions": checkout.Questions(p),
	}
}

type QuizAnswers struct {
	BusinessName string           `json:"businessName"`
	BusinessDesc string           `json:"businessDesc"`
	Template     string           `json:"template"`
	Pages        []string         `json:"pages"`
	Contact      checkout.Contact `json:"contact"`
}

type QuizSubmission struct {
	Plan       string      `json:"plan"`
	Answers    QuizAnswers `json:"answers"`
	CouponCode string      `json:"couponCode"`
	Exit       string      `json:"exit"`
}

// SubmitQuiz replays the submitted answers through the wizard so every
// server-side validation rule applies, then persists the order. A
// checkout-now exit also opens a payment intent when Stripe is configured.
func (s *Service) SubmitQuiz(ctx context.Context, input QuizSubmission) (map[string]any, error) {
	exit := checkout.Exit(input.Exit)
	if exit != checkout.ExitSaveForLater && exit != checkout.ExitCheckoutNow {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "exit must be save_for_later or checkout_now", nil)
	}

	wizard := checkout.NewWizard(checkout.PlanByName(input.Plan))
	steps := []any{
		input.Answers.BusinessName,
		input.Answers.BusinessDesc,
		input.Answers.Template,
		input.Answers.Pages,
		input.Answers.Contact,
	}
	for _, value := range steps {
		questionID := wizard.Current().ID
		if err := wizard.Answer(value); err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]any{"question": questionID})
		}
		if err := wizard.Next(); err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]any{"question": questionID})
		}
	}

	order, handoff, err := s.checkout.Submit(ctx, wizard, exit, input.CouponCode)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrCouponNotFound):
			return nil, domainError(http.StatusNotFound, "COUPON_NOT_FOUND", "Coupon not found", nil)
		case errors.Is(err, checkout.ErrCouponInactive):
			return nil, domainError(http.StatusConflict, "COUPON_INACTIVE", "Coupon is not active", nil)
		default:
			return nil, err
		}
	}

	if s.search != nil {
		s.search.IndexOrder(orderRecord(order))
	}
	s.sendOrderMail(order)

	response := map[string]any{"order": orderToMap(order)}
	if handoff != nil {
		response["handoff"] = handoff
		if s.payments != nil && s.payments.IsConfigured() {
			intent, err := s.payments.CreateIntent(ctx, *handoff)
			if err != nil {
				return nil, domainError(http.StatusBadGateway, "PAYMENT_FAILED", "Could not open payment", nil)
			}
			response["payment"] = map[string]any{
				"intentId":     intent.ID,
				"clientSecret": intent.ClientSecret,
				"amount":       intent.Amount,
				"currency":     intent.Currency,
			}
		}
	}
	return response, nil
}

// QuoteCoupon previews a coupon against a plan's base price.
func (s *Service) QuoteCoupon(ctx context.Context, plan, code string) (map[string]any, error) {
	p := checkout.PlanByName(plan)
	total, coupon, err := s.checkout.Quote(ctx, p.BasePrice, code)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrCouponNotFound):
			return nil, domainError(http.StatusNotFound, "COUPON_NOT_FOUND", "Coupon not found", nil)
		case errors.Is(err, checkout.ErrCouponInactive):
			return nil, domainError(http.StatusConflict, "COUPON_INACTIVE", "Coupon is not active", nil)
		default:
			return nil, err
		}
	}
	return map[string]any{
		"plan":      p.Name,
		"basePrice": p.BasePrice,
		"total":     total,
		"coupon":    map[string]any{"code": coupon.Code, "type": coupon.Type, "value": coupon.Value},
	}, nil
}

// ConfirmPayment verifies the payment intent against the order and marks the
// order completed.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, intentID string) (map[string]any, error) {
	if s.payments == nil || !s.payments.IsConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "PAYMENTS_DISABLED", "Payments are not configured", nil)
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == store.OrderStatusCompleted {
		return map[string]any{"order": orderToMap(order)}, nil
	}
	if err := s.payments.Verify(ctx, intentID, orderID, order.EstimatedPrice); err != nil {
		return nil, domainError(http.StatusConflict, "PAYMENT_UNVERIFIED", err.Error(), nil)
	}
	if err := s.store.AttachPayment(ctx, orderID, intentID, order.EstimatedPrice); err != nil {
		return nil, err
	}
	updated, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexOrder(orderRecord(updated))
	}
	s.sendOrderMail(updated)
	return map[string]any{"order": orderToMap(updated)}, nil
}

func (s *Service) sendOrderMail(order store.Order) {
	if !s.SMTPConfigured() {
		return
	}
	amount := order.EstimatedPrice
	if order.FinalPrice != nil {
		amount = *order.FinalPrice
	}
	go func() {
		if err := s.email.SendOrderConfirmationEmail(
			order.ContactEmail,
			order.ContactName,
			order.ID,
			order.Plan,
			formatAmount(amount, s.cfg.Currency),
			order.Status,
		); err != nil {
			log.Printf("app: order email for %s: %v", order.ID, err)
		}
	}()
}

func orderToMap(order store.Order) map[string]any {
	item := map[string]any{
		"id":               order.ID,
		"contactName":      order.ContactName,
		"contactEmail":     order.ContactEmail,
		"contactPhone":     order.ContactPhone,
		"selectedTemplate": order.SelectedTemplate,
		"plan":             order.Plan,
		"estimatedPrice":   order.EstimatedPrice,
		"status":           order.Status,
		"appliedCoupon":    order.AppliedCoupon,
		"paymentId":        order.PaymentID,
		"answers":          order.Answers,
		"createdAt":        order.CreatedAt.Format(time.RFC3339),
	}
	if order.FinalPrice != nil {
		item["finalPrice"] = *order.FinalPrice
	}
	return item
}

func orderRecord(order store.Order) search.OrderRecord {
	return search.OrderRecord{
		ID:           order.ID,
		ContactName:  order.ContactName,
		ContactEmail: order.ContactEmail,
		Template:     order.SelectedTemplate,
		Plan:         order.Plan,
		Status:       order.Status,
	}
}

var allowedOrderStatuses = map[string]struct{}{
	store.OrderStatusPending:        {},
	store.OrderStatusPendingPayment: {},
	store.OrderStatusInProgress:     {},
	store.OrderStatusCompleted:      {},
	store.OrderStatusCancelled:      {},
}

func (s *Service) AdminListOrders(ctx context.Context, status string) ([]map[string]any, error) {
	if status != "" {
		if _, ok := allowedOrderStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown order status", nil)
		}
	}
	orders, err := s.store.ListOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(orders))
	for _, order := range orders {
		items = append(items, orderToMap(order))
	}
	return items, nil
}

func (s *Service) AdminUpdateOrderStatus(ctx context.Context, orderID, status string) (map[string]any, error) {
	if _, ok := allowedOrderStatuses[status]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown order status", nil)
	}
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexOrder(orderRecord(order))
	}
	return orderToMap(order), nil
}

func (s *Service) AdminUpsertCoupon(ctx context.Context, code, couponType string, value int64, active bool) (map[string]any, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "code is required", nil)
	}
	if couponType != store.CouponTypePercentage && couponType != store.CouponTypeFlat {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be percentage or flat", nil)
	}
	if value <= 0 || (couponType == store.CouponTypePercentage && value > 100) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid coupon value", nil)
	}
	coupon := store.Coupon{Code: code, Type: couponType, Value: value, IsActive: active}
	if err := s.store.UpsertCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	return couponToMap(coupon), nil
}

func couponToMap(coupon store.Coupon) map[string]any {
	return map[string]any{
		"code":     coupon.Code,
		"type":     coupon.Type,
		"value":    coupon.Value,
		"isActive": coupon.IsActive,
	}
}

func (s *Service) AdminListCoupons(ctx context.Context) ([]map[string]any, error) {
	coupons, err := s.store.ListCoupons(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(coupons))
	for _, coupon := range coupons {
		items = append(items, couponToMap(coupon))
	}
	return items, nil
}

func (s *Service) AdminSetCouponActive(ctx context.Context, code string, active bool) error {
	if _, err := s.store.GetCoupon(ctx, code); err != nil {
		return err
	}
	return s.store.SetCouponActive(ctx, code, active)
}

func (s *Service) AdminDeleteCoupon(ctx context.Context, code string) error {
	return s.store.DeleteCoupon(ctx, code)
}

func (s *Service) AdminListClients(ctx context.Context) ([]map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":          user.ID,
			"displayName": user.DisplayName,
			"email":       user.Email,
			"role":        user.Role,
			"verified":    user.IsEmailVerified,
			"createdAt":   user.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

func (s *Service) AdminListMessages(ctx context.Context) ([]map[string]any, error) {
	messages, err := s.store.ListContactMessages(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		items = append(items, map[string]any{
			"id":        msg.ID,
			"name":      msg.Name,
			"email":     msg.Email,
			"body":      msg.Body,
			"createdAt": msg.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// SubmitContactMessage records a public contact-form message.
func (s *Service) SubmitContactMessage(ctx context.Context, name, email, body string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	body = strings.TrimSpace(body)
	if name == "" || email == "" || body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name, email, and body are required", nil)
	}
	msg := store.ContactMessage{
		ID:    util.NewID("msg"),
		Name:  name,
		Email: email,
		Body:  body,
	}
	if err := s.store.InsertContactMessage(ctx, msg); err != nil {
		return nil, err
	}
	return map[string]any{"id": msg.ID}, nil
}

// Search serves the dashboard search boxes. Non-admin callers only see
// their own projects.
func (s *Service) Search(ctx context.Context, session Session, text, filterType, status string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []search.Result{}, "total": 0, "query": text}, nil
	}
	q := search.Query{
		Text:   text,
		Limit:  limit,
		Offset: offset,
	}
	switch filterType {
	case "":
	case string(search.ResultProject), string(search.ResultOrder):
		q.FilterType = search.ResultType(filterType)
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be project or order", nil)
	}
	if rbac.IsAdmin(session.Role) {
		q.FilterStatus = status
	} else {
		q.FilterType = search.ResultProject
		q.FilterOwnerID = session.UserID
	}
	response := s.search.Search(q)
	return map[string]any{"results": response.Results, "total": response.Total, "query": response.Query}, nil
}

// SubscribeProject wires the SSE endpoint to the live hub.
func (s *Service) SubscribeProject(ctx context.Context, session Session, projectID string) (store.Project, <-chan live.Event, func(), error) {
	project, _, err := s.requireProject(ctx, session, projectID, rbac.ActionView)
	if err != nil {
		return store.Project{}, nil, nil, err
	}
	if s.hub == nil {
		return store.Project{}, nil, nil, domainError(http.StatusServiceUnavailable, "LIVE_DISABLED", "Live events are not configured", nil)
	}
	events, cancel := s.hub.Subscribe(projectID)
	return project, events, cancel, nil
}

func (s *Service) publish(ctx context.Context, event live.Event) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(ctx, event); err != nil {
		log.Printf("app: publish %s for %s: %v", event.Type, event.ProjectID, err)
	}
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), float64(minor)/100)
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "site"
	}
	return slug
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '_'); i >= 0 && len(id) > i+7 {
		return id[i+1 : i+7]
	}
	if len(id) > 6 {
		return id[:6]
	}
	return id
}

func pathExt(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i:]
	}
	return ""
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
