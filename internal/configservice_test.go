package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos/sqltest"
)

func configContext() context.Context {
	return ctxhelper.WithLogger(context.Background(), sqltest.Logger())
}

func writeFile(t *testing.T, name, content string) string {
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestConfigService_DefaultsWithoutFile(t *testing.T) {
	s := NewConfigService(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, s.Load(configContext()))

	conf := s.GetConfig(configContext())
	assert.Equal(t, ":3000", conf.ListenAddress)
	assert.Equal(t, "sqlite3", conf.Database.Driver)
	assert.Equal(t, models.BackendSQL, conf.Storage.Events)
	assert.Equal(t, time.Hour, conf.Auth.TokenTTL)
	assert.Equal(t, uint32(5), conf.Cloudflare.BreakerFailures)
}

func TestConfigService_FileAndEnvironment(t *testing.T) {
	p := writeFile(t, "config.yaml", `
listen_address: ":8080"
storage:
  events: redis
cloudflare:
  account_id: acct-from-file
  timeout: 45s
mail:
  host: smtp.example.com
  sender: info@gamemixer.example
auth:
  jwt_secret: from-file
`)
	t.Setenv("GAMEMIXER_AUTH__JWT_SECRET", "from-env")
	t.Setenv("GAMEMIXER_MAIL__PORT", "2525")
	t.Setenv("GAMEMIXER_RATE_LIMIT__WINDOW", "2m")

	s := NewConfigService("unused.yaml", "")
	require.NoError(t, s.LoadFromFile(configContext(), p))
	conf := s.GetConfig(configContext())

	assert.Equal(t, ":8080", conf.ListenAddress)
	assert.Equal(t, models.BackendRedis, conf.Storage.Events)
	assert.Equal(t, models.BackendSQL, conf.Storage.Records)
	assert.Equal(t, "acct-from-file", conf.Cloudflare.AccountID)
	assert.Equal(t, 45*time.Second, conf.Cloudflare.Timeout)
	assert.Equal(t, "https://api.cloudflare.com/client/v4", conf.Cloudflare.APIBaseURL)
	assert.Equal(t, "smtp.example.com", conf.Mail.Host)
	assert.Equal(t, 2525, conf.Mail.Port)
	assert.Equal(t, "from-env", conf.Auth.JWTSecret)
	assert.Equal(t, 2*time.Minute, conf.RateLimit.Window)
}

func TestConfigService_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "GAMEMIXER_REDIS__ADDR=redis.internal:6380\n")
	t.Cleanup(func() { os.Unsetenv("GAMEMIXER_REDIS__ADDR") })

	s := NewConfigService(filepath.Join(t.TempDir(), "missing.yaml"), envFile)
	require.NoError(t, s.Load(configContext()))
	assert.Equal(t, "redis.internal:6380", s.GetConfig(configContext()).Redis.Addr)
}

func TestConfigService_BrokenFile(t *testing.T) {
	p := writeFile(t, "config.yaml", "listen_address: [unclosed")
	s := NewConfigService(p, "")
	assert.Error(t, s.Load(configContext()))
}

func TestEnvToPath(t *testing.T) {
	assert.Equal(t, "cloudflare.api_token", envToPath("GAMEMIXER_CLOUDFLARE__API_TOKEN"))
	assert.Equal(t, "listen_address", envToPath("GAMEMIXER_LISTEN_ADDRESS"))
	assert.Equal(t, "auth.default_user.password", envToPath("GAMEMIXER_AUTH__DEFAULT_USER__PASSWORD"))
}
