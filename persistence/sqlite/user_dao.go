package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

var _ persistence.UserDao = new(sqliteUserDao)

const userColumns = `id, name, phone, cpf, is_active, created_at, id_main_agent, id_session_wpp,
	token_wpp, google_token, google_refresh_token, whatsapp_integration,
	google_calendar_integration, apple_calendar_integration, email_integration,
	integration_is_running`

type sqliteUserDao struct {
	db *sql.DB
}

func NewSqliteUserDao(db *sql.DB) *sqliteUserDao {
	return &sqliteUserDao{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqliteUserDao) CreateUser(ctx context.Context, user *model.User) error {
	if len(user.Id) == 0 {
		user.Id = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.IsActive = true
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userArgs(user)...)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *sqliteUserDao) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *sqliteUserDao) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ? ORDER BY created_at LIMIT 1`, phone)
	return scanUser(row)
}

func (s *sqliteUserDao) UpdateUser(ctx context.Context, id string, update model.UserUpdate) (*model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	update.Apply(user)
	args := userArgs(user)
	_, err = tx.ExecContext(ctx, `UPDATE users SET name = ?, phone = ?, cpf = ?, is_active = ?,
		created_at = ?, id_main_agent = ?, id_session_wpp = ?, token_wpp = ?, google_token = ?,
		google_refresh_token = ?, whatsapp_integration = ?, google_calendar_integration = ?,
		apple_calendar_integration = ?, email_integration = ?, integration_is_running = ?
		WHERE id = ?`, append(args[1:], user.Id)...)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if err := tx.Commit(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return user, nil
}

func (s *sqliteUserDao) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *sqliteUserDao) ListRunningIntegrations(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE integration_is_running <> '' ORDER BY created_at`)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return users, nil
}

func userArgs(u *model.User) []any {
	var cpf sql.NullString
	if len(u.Cpf) > 0 {
		cpf = sql.NullString{String: u.Cpf, Valid: true}
	}
	return []any{
		u.Id, u.Name, u.Phone, cpf, u.IsActive, u.CreatedAt.UTC().Format(time.RFC3339Nano),
		u.MainAgentId, u.WppSessionId, u.WppToken, u.GoogleToken, u.GoogleRefreshToken,
		u.WhatsappIntegration, u.GoogleCalendarIntegration, u.AppleCalendarIntegration,
		u.EmailIntegration, u.IntegrationRunning,
	}
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		cpf       sql.NullString
		createdAt string
	)
	err := row.Scan(&u.Id, &u.Name, &u.Phone, &cpf, &u.IsActive, &createdAt, &u.MainAgentId,
		&u.WppSessionId, &u.WppToken, &u.GoogleToken, &u.GoogleRefreshToken,
		&u.WhatsappIntegration, &u.GoogleCalendarIntegration, &u.AppleCalendarIntegration,
		&u.EmailIntegration, &u.IntegrationRunning)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	u.Cpf = cpf.String
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of user %s: %w", u.Id, err)
	}
	return &u, nil
}
