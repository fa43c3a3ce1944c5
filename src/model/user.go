package model

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found, expired, or blocked")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	AuthProvider string    `json:"auth_provider,omitempty"`
	DisplayName  string    `json:"display_name"`
	PhotoURL     string    `json:"photo_url"`
	LoginCount   int       `json:"login_count"`
	LastLoginAt  NullTime  `json:"last_login_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OwnerID is the user id as stored in the per-user tables.
func (u *User) OwnerID() string { return strconv.FormatInt(u.ID, 10) }

// NullTime is sql.NullTime that marshals to null when unset.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}

	res, err := db.ExecContext(ctx, `
	INSERT INTO users (username, email, password, auth_provider, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Password, u.AuthProvider, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

const userColumns = `id, username, email, password, auth_provider, display_name, photo_url, login_count, last_login_at, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var lastLoginAt sql.NullTime
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.AuthProvider,
		&user.DisplayName, &user.PhotoURL, &user.LoginCount, &lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.LastLoginAt = NullTime(lastLoginAt)
	return &user, nil
}

func GetUserByID(ctx context.Context, db *sql.DB, id int64) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// RecordLogin bumps the login counter and last login time.
func (u *User) RecordLogin(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
	UPDATE users SET login_count = login_count + 1, last_login_at = ?, updated_at = ?
	WHERE id = ?`, now, now, u.ID)
	if err != nil {
		return err
	}
	u.LoginCount++
	u.LastLoginAt = NullTime{Time: now, Valid: true}
	return nil
}

func (u *User) UpdatePassword(ctx context.Context, db *sql.DB, newPasswordHash string) error {
	u.Password = newPasswordHash
	u.UpdatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx, `UPDATE users SET password = ?, updated_at = ? WHERE id = ?`, u.Password, u.UpdatedAt, u.ID)
	return err
}

// UpdateProfile stores the display name and photo URL. Both are expected
// to be validated already.
func (u *User) UpdateProfile(ctx context.Context, db *sql.DB, displayName, photoURL string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `UPDATE users SET display_name = ?, photo_url = ?, updated_at = ? WHERE id = ?`,
		displayName, photoURL, now, u.ID)
	if err != nil {
		return err
	}
	u.DisplayName = displayName
	u.PhotoURL = photoURL
	u.UpdatedAt = now
	return nil
}

type Session struct {
	ID           int       `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func CreateSession(ctx context.Context, db *sql.DB, session *Session) error {
	session.CreatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx, `
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func scanSession(row *sql.Row) (*Session, error) {
	var session Session
	var userAgent, clientIP sql.NullString
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&userAgent,
		&clientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	session.UserAgent = userAgent.String
	session.ClientIP = clientIP.String
	return &session, nil
}

const sessionColumns = `id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at`

func GetSessionByToken(ctx context.Context, db *sql.DB, token string) (*Session, error) {
	return scanSession(db.QueryRowContext(ctx, `
	SELECT `+sessionColumns+` FROM sessions
	WHERE token = ? AND is_blocked = FALSE AND expires_at > ?`, token, time.Now().UTC()))
}

func GetSessionByRefreshToken(ctx context.Context, db *sql.DB, refreshToken string) (*Session, error) {
	return scanSession(db.QueryRowContext(ctx, `
	SELECT `+sessionColumns+` FROM sessions
	WHERE refresh_token = ? AND is_blocked = FALSE AND expires_at > ?`, refreshToken, time.Now().UTC()))
}

func DeleteSessionByToken(ctx context.Context, db *sql.DB, token string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func DeleteSessionByRefreshToken(ctx context.Context, db *sql.DB, refreshToken string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = ?`, refreshToken)
	return err
}

// DeleteUserData removes the user and every row they own in one transaction.
func DeleteUserData(ctx context.Context, db *sql.DB, userID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	owner := strconv.FormatInt(userID, 10)
	for _, q := range []struct {
		query string
		arg   any
	}{
		{`DELETE FROM watchlist WHERE user_id = ?`, owner},
		{`DELETE FROM transactions WHERE user_id = ?`, owner},
		{`DELETE FROM expenses WHERE user_id = ?`, owner},
		{`DELETE FROM subscribers WHERE user_id = ?`, owner},
		{`DELETE FROM sessions WHERE user_id = ?`, userID},
		{`DELETE FROM users WHERE id = ?`, userID},
	} {
		if _, err := tx.ExecContext(ctx, q.query, q.arg); err != nil {
			return err
		}
	}
	return tx.Commit()
}
