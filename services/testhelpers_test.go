package services

import (
	"bytes"
	"context"
	"testing"

	"referral-points-system/database"
	"referral-points-system/logging"
	"referral-points-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testLogger() *logging.Logger {
	return logging.NewTestLogger()
}

// seedUser inserts a user directly, bypassing registration.
func seedUser(t *testing.T, db *gorm.DB, email string, referredBy *models.User) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x"}
	if referredBy != nil {
		u.ReferredBy = &referredBy.ID
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func strPtr(s string) *string { return &s }

// scriptedReader replays fixed bytes, then falls back to a counter so reads never run dry.
type scriptedReader struct {
	script *bytes.Reader
	next   byte
}

func newScriptedReader(b []byte) *scriptedReader {
	return &scriptedReader{script: bytes.NewReader(b), next: 0x10}
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	n, _ := r.script.Read(p)
	for i := n; i < len(p); i++ {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

var bg = context.Background()
