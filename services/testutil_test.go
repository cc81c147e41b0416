package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidewell/suggestbox/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Suggestion{}, &models.Comment{}, &models.Vote{}))
	return db
}

func mustRegister(t *testing.T, creds *CredentialStore, username string) *models.User {
	t.Helper()
	user, err := creds.Register(username, "correct-horse", "127.0.0.1")
	require.NoError(t, err)
	return user
}
