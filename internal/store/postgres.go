package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken, user.VerificationExpiresAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, role, is_email_verified
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, role, is_email_verified, created_at
		FROM users ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role, &user.IsEmailVerified, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return errors.New("invalid or expired verification token")
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ── Sessions ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1 AND rs.revoked_at IS NULL AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1 AND expires_at > NOW())`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Projects ──

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner_id, html_content)
		VALUES ($1, $2, $3, $4)
	`, project.ID, project.Name, project.OwnerID, project.HTMLContent)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, html_content, is_dirty, editing_by, deployment_url, thumbnail_url, version, created_at, updated_at
		FROM projects WHERE id=$1
	`, projectID).Scan(&p.ID, &p.Name, &p.OwnerID, &p.HTMLContent, &p.IsDirty, &p.EditingBy, &p.DeploymentURL, &p.ThumbnailURL, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProjectsByUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.name, p.owner_id, p.is_dirty, p.editing_by, p.deployment_url, p.thumbnail_url, p.version, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN project_collaborators pc ON pc.project_id = p.id
		WHERE p.owner_id = $1 OR pc.user_id = $1
		ORDER BY p.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.IsDirty, &p.EditingBy, &p.DeploymentURL, &p.ThumbnailURL, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) RenameProject(ctx context.Context, projectID, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET name=$2, updated_at=NOW() WHERE id=$1`, projectID, name)
	if err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// UpdateProjectHTML saves new HTML only when expectedVersion matches the
// stored version, returning the new version. A false result means the caller
// lost the race and must re-read.
func (s *PostgresStore) UpdateProjectHTML(ctx context.Context, projectID, html string, isDirty bool, expectedVersion int64) (int64, bool, error) {
	var newVersion int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET html_content=$2, is_dirty=$3, version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$4
		RETURNING version
	`, projectID, html, isDirty, expectedVersion).Scan(&newVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("update project html: %w", err)
	}
	return newVersion, true, nil
}

// ForceProjectHTML overwrites HTML unconditionally. Used by the generation
// finalizer, which must persist whatever was produced.
func (s *PostgresStore) ForceProjectHTML(ctx context.Context, projectID, html string, isDirty bool) (int64, error) {
	var newVersion int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET html_content=$2, is_dirty=$3, version=version+1, updated_at=NOW()
		WHERE id=$1
		RETURNING version
	`, projectID, html, isDirty).Scan(&newVersion)
	if err != nil {
		return 0, fmt.Errorf("force project html: %w", err)
	}
	return newVersion, nil
}

// SetEditingMarker claims the advisory marker when it is free or already
// held by the same user. Returns false when another user holds it.
func (s *PostgresStore) SetEditingMarker(ctx context.Context, projectID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET editing_by=$2 WHERE id=$1 AND (editing_by='' OR editing_by=$2)
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("set editing marker: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("editing marker rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ClearEditingMarker(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET editing_by='' WHERE id=$1 AND editing_by=$2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("clear editing marker: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetDeploymentURL(ctx context.Context, projectID, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET deployment_url=$2, updated_at=NOW() WHERE id=$1`, projectID, url)
	if err != nil {
		return fmt.Errorf("set deployment url: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetThumbnailURL(ctx context.Context, projectID, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET thumbnail_url=$2 WHERE id=$1`, projectID, url)
	if err != nil {
		return fmt.Errorf("set thumbnail url: %w", err)
	}
	return nil
}

// ── Collaborators ──

func (s *PostgresStore) UpsertCollaborator(ctx context.Context, c Collaborator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_collaborators (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, c.ProjectID, c.UserID, c.Role)
	if err != nil {
		return fmt.Errorf("upsert collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_collaborators WHERE project_id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, projectID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pc.project_id, pc.user_id, pc.role, u.display_name, pc.added_at
		FROM project_collaborators pc
		JOIN users u ON u.id = pc.user_id
		WHERE pc.project_id=$1
		ORDER BY pc.added_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	var collaborators []Collaborator
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.ProjectID, &c.UserID, &c.Role, &c.DisplayName, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		collaborators = append(collaborators, c)
	}
	return collaborators, rows.Err()
}

// GetProjectRole resolves a user's role on a project: owner, a collaborator
// role, or sql.ErrNoRows when the user has no access at all.
func (s *PostgresStore) GetProjectRole(ctx context.Context, projectID, userID string) (string, error) {
	var ownerID string
	if err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM projects WHERE id=$1`, projectID).Scan(&ownerID); err != nil {
		return "", err
	}
	if ownerID == userID {
		return "owner", nil
	}
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM project_collaborators WHERE project_id=$1 AND user_id=$2`, projectID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

// ── Chat ──

func (s *PostgresStore) AppendChatMessage(ctx context.Context, projectID, role, text string) (ChatMessage, error) {
	var msg ChatMessage
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (project_id, seq, role, text)
		VALUES ($1, COALESCE((SELECT MAX(seq) FROM chat_messages WHERE project_id=$1), 0) + 1, $2, $3)
		RETURNING id, project_id, seq, role, text, created_at
	`, projectID, role, text).Scan(&msg.ID, &msg.ProjectID, &msg.Seq, &msg.Role, &msg.Text, &msg.CreatedAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("append chat message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListChatMessages(ctx context.Context, projectID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, seq, role, text, created_at
		FROM chat_messages WHERE project_id=$1 ORDER BY seq
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.Seq, &msg.Role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ── Images ──

func (s *PostgresStore) InsertProjectImage(ctx context.Context, image ProjectImage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_images (id, project_id, name, url, public_id)
		VALUES ($1, $2, $3, $4, $5)
	`, image.ID, image.ProjectID, image.Name, image.URL, image.PublicID)
	if err != nil {
		return fmt.Errorf("insert project image: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProjectImages(ctx context.Context, projectID string) ([]ProjectImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, url, public_id, created_at
		FROM project_images WHERE project_id=$1 ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project images: %w", err)
	}
	defer rows.Close()

	var images []ProjectImage
	for rows.Next() {
		var image ProjectImage
		if err := rows.Scan(&image.ID, &image.ProjectID, &image.Name, &image.URL, &image.PublicID, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project image: %w", err)
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (s *PostgresStore) DeleteProjectImage(ctx context.Context, projectID, imageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_images WHERE id=$1 AND project_id=$2`, imageID, projectID)
	if err != nil {
		return fmt.Errorf("delete project image: %w", err)
	}
	return nil
}

// ── Collections ──

func (s *PostgresStore) InsertCollection(ctx context.Context, collection Collection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, project_id, name) VALUES ($1, $2, $3)
	`, collection.ID, collection.ProjectID, collection.Name)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCollections(ctx context.Context, projectID string) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, created_at FROM collections WHERE project_id=$1 ORDER BY created_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		var collection Collection
		if err := rows.Scan(&collection.ID, &collection.ProjectID, &collection.Name, &collection.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, collection)
	}
	return collections, rows.Err()
}

func (s *PostgresStore) GetCollection(ctx context.Context, collectionID string) (Collection, error) {
	var collection Collection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, created_at FROM collections WHERE id=$1
	`, collectionID).Scan(&collection.ID, &collection.ProjectID, &collection.Name, &collection.CreatedAt)
	if err != nil {
		return Collection{}, err
	}
	return collection, nil
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, projectID, collectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id=$1 AND project_id=$2`, collectionID, projectID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, submission Submission) error {
	payload, err := json.Marshal(submission.Payload)
	if err != nil {
		return fmt.Errorf("marshal submission payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, collection_id, payload) VALUES ($1, $2, $3)
	`, submission.ID, submission.CollectionID, payload)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, collectionID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, payload, created_at FROM submissions WHERE collection_id=$1 ORDER BY created_at DESC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var submission Submission
		var raw []byte
		if err := rows.Scan(&submission.ID, &submission.CollectionID, &raw, &submission.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal(raw, &submission.Payload); err != nil {
			return nil, fmt.Errorf("decode submission payload: %w", err)
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

// ── Orders ──

func (s *PostgresStore) InsertOrder(ctx context.Context, order Order) error {
	answers, err := json.Marshal(order.Answers)
	if err != nil {
		return fmt.Errorf("marshal order answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, contact_name, contact_email, contact_phone, selected_template, plan, estimated_price, final_price, status, applied_coupon, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, order.ID, order.ContactName, order.ContactEmail, order.ContactPhone, order.SelectedTemplate, order.Plan,
		order.EstimatedPrice, order.FinalPrice, order.Status, order.AppliedCoupon, answers)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	var answers []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, contact_name, contact_email, contact_phone, selected_template, plan, estimated_price, final_price, status, applied_coupon, payment_id, answers, created_at, updated_at
		FROM orders WHERE id=$1
	`, orderID).Scan(&order.ID, &order.ContactName, &order.ContactEmail, &order.ContactPhone, &order.SelectedTemplate, &order.Plan,
		&order.EstimatedPrice, &order.FinalPrice, &order.Status, &order.AppliedCoupon, &order.PaymentID, &answers, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(answers, &order.Answers); err != nil {
		return Order{}, fmt.Errorf("decode order answers: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, status string) ([]Order, error) {
	query := `
		SELECT id, contact_name, contact_email, contact_phone, selected_template, plan, estimated_price, final_price, status, applied_coupon, payment_id, created_at, updated_at
		FROM orders
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.ContactName, &order.ContactEmail, &order.ContactPhone, &order.SelectedTemplate, &order.Plan,
			&order.EstimatedPrice, &order.FinalPrice, &order.Status, &order.AppliedCoupon, &order.PaymentID, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (s *PostgresStore) AttachPayment(ctx context.Context, orderID, paymentID string, finalPrice int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET payment_id=$2, final_price=$3, status=$4, updated_at=NOW() WHERE id=$1
	`, orderID, paymentID, finalPrice, OrderStatusCompleted)
	if err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	return nil
}

// ── Coupons ──

func (s *PostgresStore) UpsertCoupon(ctx context.Context, coupon Coupon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coupons (code, type, value, is_active)
		VALUES (UPPER($1), $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET type=EXCLUDED.type, value=EXCLUDED.value, is_active=EXCLUDED.is_active
	`, coupon.Code, coupon.Type, coupon.Value, coupon.IsActive)
	if err != nil {
		return fmt.Errorf("upsert coupon: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCoupon(ctx context.Context, code string) (Coupon, error) {
	var coupon Coupon
	err := s.db.QueryRowContext(ctx, `
		SELECT code, type, value, is_active, created_at FROM coupons WHERE code=UPPER($1)
	`, code).Scan(&coupon.Code, &coupon.Type, &coupon.Value, &coupon.IsActive, &coupon.CreatedAt)
	if err != nil {
		return Coupon{}, err
	}
	return coupon, nil
}

func (s *PostgresStore) ListCoupons(ctx context.Context) ([]Coupon, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, type, value, is_active, created_at FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		var coupon Coupon
		if err := rows.Scan(&coupon.Code, &coupon.Type, &coupon.Value, &coupon.IsActive, &coupon.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}
	return coupons, rows.Err()
}

func (s *PostgresStore) SetCouponActive(ctx context.Context, code string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE coupons SET is_active=$2 WHERE code=UPPER($1)`, code, active)
	if err != nil {
		return fmt.Errorf("set coupon active: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCoupon(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE code=UPPER($1)`, code)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

// ── Contact messages ──

func (s *PostgresStore) InsertContactMessage(ctx context.Context, msg ContactMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, body) VALUES ($1, $2, $3, $4)
	`, msg.ID, msg.Name, msg.Email, msg.Body)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListContactMessages(ctx context.Context) ([]ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, body, created_at FROM contact_messages ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	var messages []ContactMessage
	for rows.Next() {
		var msg ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
