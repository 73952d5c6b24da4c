package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-sheet-service/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PAGE_CONCURRENCY", "OPERATION_TIMEOUT", "TQG_BASE_URL", "OPERATION_LOG_ENABLED", "REMOTE_RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8095", cfg.Port)
	assert.Equal(t, 4, cfg.PageConcurrency)
	assert.Equal(t, 8, cfg.DetailConcurrency)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
	assert.Equal(t, 35*time.Minute, cfg.SessionLockTTL)
	assert.Equal(t, int64(64<<20), cfg.MaxUploadSize)
	assert.Equal(t, 5.0, cfg.RemoteRateLimit)
	assert.True(t, cfg.OperationLogEnabled)
	assert.Equal(t, "https://tqgfreeway.ju.taobao.com", cfg.BaseURL(models.PlatformTaoQiangGou))
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAGE_CONCURRENCY", "2")
	t.Setenv("OPERATION_TIMEOUT", "5m")
	t.Setenv("SESSION_LOCK_TTL", "6m")
	t.Setenv("OPERATION_LOG_ENABLED", "false")
	t.Setenv("REMOTE_RATE_LIMIT", "0.5")
	t.Setenv("DETAIL_CONCURRENCY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 2, cfg.PageConcurrency)
	assert.Equal(t, 8, cfg.DetailConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.OperationTimeout)
	assert.False(t, cfg.OperationLogEnabled)
	assert.Equal(t, 0.5, cfg.RemoteRateLimit)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Load()
	cfg.PageConcurrency = 0
	cfg.MaxUploadSize = -1
	cfg.SessionLockTTL = time.Minute
	cfg.ArticleImageURL = "http://example.com/fixed.png"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_CONCURRENCY must be positive")
	assert.Contains(t, err.Error(), "MAX_UPLOAD_SIZE must be positive")
	assert.Contains(t, err.Error(), "SESSION_LOCK_TTL must not be shorter")
	assert.Contains(t, err.Error(), "ARTICLE_IMAGE_URL")
}
