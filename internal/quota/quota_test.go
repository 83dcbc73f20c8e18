package quota

import (
	"fmt"
	"taskhub/internal/model"
	"taskhub/internal/policy"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.Project{}))
	return db
}

func TestCheckUsers(t *testing.T) {
	db := openTestDB(t)

	tenant := model.Tenant{Name: "Acme", Subdomain: "acme", MaxUsers: 2, MaxProjects: 3}
	require.NoError(t, db.Create(&tenant).Error)

	assert.NoError(t, CheckUsers(db, &tenant))

	for i := 0; i < 2; i++ {
		user := model.User{
			TenantID:     &tenant.ID,
			Email:        fmt.Sprintf("user%d@acme.test", i),
			PasswordHash: "x",
			Role:         model.RoleUser,
			IsActive:     true,
		}
		require.NoError(t, db.Create(&user).Error)
	}

	err := CheckUsers(db, &tenant)
	require.Error(t, err)
	perr, ok := err.(*policy.Error)
	require.True(t, ok)
	assert.Equal(t, 403, perr.Status)
	assert.Equal(t, "User limit reached", perr.Message)
}

func TestCheckProjects(t *testing.T) {
	db := openTestDB(t)

	tenant := model.Tenant{Name: "Acme", Subdomain: "acme", MaxUsers: 5, MaxProjects: 1}
	require.NoError(t, db.Create(&tenant).Error)

	assert.NoError(t, CheckProjects(db, &tenant))

	require.NoError(t, db.Create(&model.Project{TenantID: tenant.ID, Name: "Only"}).Error)

	err := CheckProjects(db, &tenant)
	require.Error(t, err)
	assert.Equal(t, "Project limit reached", err.(*policy.Error).Message)
}

func TestQuotaCountsOnlyOwnTenant(t *testing.T) {
	db := openTestDB(t)

	acme := model.Tenant{Name: "Acme", Subdomain: "acme", MaxUsers: 1, MaxProjects: 1}
	globex := model.Tenant{Name: "Globex", Subdomain: "globex", MaxUsers: 1, MaxProjects: 1}
	require.NoError(t, db.Create(&acme).Error)
	require.NoError(t, db.Create(&globex).Error)

	user := model.User{
		TenantID:     &globex.ID,
		Email:        "user@globex.test",
		PasswordHash: "x",
		Role:         model.RoleUser,
	}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&model.Project{TenantID: globex.ID, Name: "Other"}).Error)

	// Globex being full does not affect Acme.
	assert.NoError(t, CheckUsers(db, &acme))
	assert.NoError(t, CheckProjects(db, &acme))
}
