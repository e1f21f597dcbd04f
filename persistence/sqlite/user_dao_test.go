package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

func newTestDao(t *testing.T) *sqliteUserDao {
	t.Helper()
	db, err := Connect(context.Background(), filepath.Join(t.TempDir(), "data", "flowbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSqliteUserDao(db)
}

func TestUserDao(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, dao *sqliteUserDao){
		"create and get":     testCreateGet,
		"update partial":     testUpdate,
		"missing user":       testMissing,
		"delete":             testDeleteUser,
		"cpf must be unique": testUniqueCpf,
		"running markers":    testListRunning,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestDao(t))
		})
	}
}

func testCreateGet(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	user := &model.User{Name: "Maria Silva", Phone: "5511999990000"}
	require.NoError(t, dao.CreateUser(ctx, user))
	require.NotEmpty(t, user.Id)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := dao.GetUser(ctx, user.Id)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", got.Name)
	assert.True(t, got.IsActive)
	assert.Empty(t, got.Cpf)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	byPhone, err := dao.GetUserByPhone(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, user.Id, byPhone.Id)
}

func testUpdate(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	user := &model.User{Name: "Maria Silva", Phone: "5511999990000"}
	require.NoError(t, dao.CreateUser(ctx, user))

	updated, err := dao.UpdateUser(ctx, user.Id, model.UserUpdate{
		WppSessionId:        model.String("info_agent_5511999990000"),
		WppToken:            model.String("tok"),
		WhatsappIntegration: model.Bool(true),
		IntegrationRunning:  model.String("whatsapp"),
	})
	require.NoError(t, err)
	assert.Equal(t, "info_agent_5511999990000", updated.WppSessionId)

	got, err := dao.GetUser(ctx, user.Id)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.WppToken)
	assert.True(t, got.WhatsappIntegration)
	assert.False(t, got.EmailIntegration)
	assert.Equal(t, "whatsapp", got.IntegrationRunning)
	assert.Equal(t, "Maria Silva", got.Name)

	_, err = dao.UpdateUser(ctx, user.Id, model.UserUpdate{IntegrationRunning: model.String("")})
	require.NoError(t, err)
	got, err = dao.GetUser(ctx, user.Id)
	require.NoError(t, err)
	assert.Empty(t, got.IntegrationRunning)
}

func testMissing(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	_, err := dao.GetUser(ctx, "nobody")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = dao.GetUserByPhone(ctx, "000")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = dao.UpdateUser(ctx, "nobody", model.UserUpdate{Name: model.String("x")})
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func testDeleteUser(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	user := &model.User{Name: "João", Phone: "5521988887777"}
	require.NoError(t, dao.CreateUser(ctx, user))
	require.NoError(t, dao.DeleteUser(ctx, user.Id))
	require.ErrorIs(t, dao.DeleteUser(ctx, user.Id), persistence.ErrNotFound)
}

func testUniqueCpf(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	require.NoError(t, dao.CreateUser(ctx, &model.User{Name: "A", Phone: "1", Cpf: "123"}))
	require.NoError(t, dao.CreateUser(ctx, &model.User{Name: "B", Phone: "2"}))
	require.NoError(t, dao.CreateUser(ctx, &model.User{Name: "C", Phone: "3"}))
	err := dao.CreateUser(ctx, &model.User{Name: "D", Phone: "4", Cpf: "123"})
	var storageErr persistence.StorageLayerError
	require.ErrorAs(t, err, &storageErr)
}

func testListRunning(t *testing.T, dao *sqliteUserDao) {
	ctx := context.Background()
	idle := &model.User{Name: "A", Phone: "1"}
	busy := &model.User{Name: "B", Phone: "2", IntegrationRunning: "google"}
	require.NoError(t, dao.CreateUser(ctx, idle))
	require.NoError(t, dao.CreateUser(ctx, busy))

	users, err := dao.ListRunningIntegrations(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, busy.Id, users[0].Id)
	assert.Equal(t, "google", users[0].IntegrationRunning)

	_, err = dao.UpdateUser(ctx, busy.Id, model.UserUpdate{IntegrationRunning: model.String("")})
	require.NoError(t, err)
	users, err = dao.ListRunningIntegrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
