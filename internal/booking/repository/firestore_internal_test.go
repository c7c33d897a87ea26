package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSettingPath(t *testing.T) {
	doc, field := settingPath("sms.reminder_template")
	assert.Equal(t, "sms", doc)
	assert.Equal(t, "reminder_template", field)

	doc, field = settingPath("banner")
	assert.Equal(t, "banner", doc)
	assert.Equal(t, "value", field)

	doc, field = settingPath("trailing.")
	assert.Equal(t, "trailing.", doc)
	assert.Equal(t, "value", field)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "no document")))
	assert.False(t, isNotFound(status.Error(codes.Unavailable, "down")))
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, 50, listLimit(50))
	assert.Equal(t, maxListLimit, listLimit(90000))
}

func TestValidKind(t *testing.T) {
	assert.NoError(t, validKind(KindPostgres))
	assert.NoError(t, validKind(KindFirestore))
	assert.Error(t, validKind("mongo"))
}
