package service

import (
	"context"
	"testing"
	"time"

	"hustconnect/config"
	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(env *testEnv) (*UserService, *jwt.JWTService) {
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "svc-secret", Issuer: "hustconnect-test", ExpireTime: time.Hour})
	return NewUserService(repository.NewUserRepository(env.db), jwtSvc, redis.NewPresence(nil)), jwtSvc
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	users, jwtSvc := newUserService(env)

	res, err := users.Register(ctx, " Alice ", "Alice@Example.com", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.User.Name)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, model.RoleNormal, res.User.Role)

	claims, err := jwtSvc.ValidateToken(res.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)

	_, err = users.Register(ctx, "Alice2", "alice@example.com", "secret1", "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = users.Register(ctx, "Bob", "bob@example.com", "123", "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	_, err = users.Register(ctx, "Bob", "bob@example.com", "secret1", model.RoleAdmin)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	logged, err := users.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, logged.User.ID)

	_, err = users.Login(ctx, "alice@example.com", "wrong-pass")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	_, err = users.Login(ctx, "nobody@example.com", "secret1")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	me, err := users.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	presence, err := users.Presence(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, presence.Online)
	_, err = users.Presence(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateCompany(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	hr := env.createUser(t, "hr", model.RoleHR)
	normal := env.createUser(t, "normal", model.RoleNormal)
	hr2 := env.createUser(t, "hr2", model.RoleHR)

	_, err := env.companies.Create(ctx, normal.ID, CreateCompanyInput{Name: "Acme"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = env.companies.Create(ctx, hr.ID, CreateCompanyInput{Name: "  "})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	company, err := env.companies.Create(ctx, hr.ID, CreateCompanyInput{Name: "Acme", Industry: "Software"})
	require.NoError(t, err)
	assert.Equal(t, hr.ID, company.CreatedBy)
	assert.Equal(t, company.ID, *env.reloadUser(t, hr.ID).CompanyID)

	_, err = env.companies.Create(ctx, hr.ID, CreateCompanyInput{Name: "Second"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, apperr.ReasonAlreadyAffiliated, apperr.ReasonOf(err))

	_, err = env.companies.Create(ctx, hr2.ID, CreateCompanyInput{Name: "ACME"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, apperr.ReasonDuplicateName, apperr.ReasonOf(err))
	assert.Nil(t, env.reloadUser(t, hr2.ID).CompanyID)

	_, err = env.companies.Get(ctx, hr.ID, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateCompany_AffiliationWrittenAfterRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	rival := env.createCompany(t, env.createUser(t, "rival", model.RoleHR), "Initech")
	hr := env.createUser(t, "hr", model.RoleHR)

	// 创建者检查通过后，另一写入抢先关联了其他公司
	env.afterUserRead(t, hr.ID, func(tx *gorm.DB) {
		assert.NoError(t, tx.Model(&model.User{}).Where("id = ?", hr.ID).Update("company_id", rival.ID).Error)
	})

	_, err := env.companies.Create(ctx, hr.ID, CreateCompanyInput{Name: "Acme"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, apperr.ReasonAlreadyAffiliated, apperr.ReasonOf(err))

	assert.Equal(t, rival.ID, *env.reloadUser(t, hr.ID).CompanyID)
	var n int64
	require.NoError(t, env.db.Model(&model.Company{}).Where("name = ?", "Acme").Count(&n).Error)
	assert.Zero(t, n, "公司创建随事务回滚")
}
