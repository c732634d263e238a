package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Notifications.PollInterval())
	assert.Equal(t, 20, cfg.Notifications.LedgerSize)
	assert.Equal(t, 3, cfg.Notifications.ToastLimit)
	assert.Equal(t, 5*time.Second, cfg.Notifications.ToastTTL())
	assert.Equal(t, 2*time.Minute, cfg.Notifications.ToastMaxAge())
	assert.Equal(t, 50, cfg.EventSource.FetchLimit)
	assert.Equal(t, "inventory_logs", cfg.EventSource.NotifyChannel)
	assert.Equal(t, "postgres", cfg.EventSource.Driver)
	assert.True(t, cfg.Notifications.Sound)
}

func TestLoadConfig_FileValuesAndFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
viewer:
  user_id: u-7
  home_branch: b-north
  role: ADMIN
  simulated_branch: b-south
event_source:
  driver: memory
  fetch_limit: 0
notifications:
  poll_interval_sec: 30
  toast_limit: -1
  sound: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.EventSource.Driver)
	assert.Equal(t, 50, cfg.EventSource.FetchLimit)
	assert.Equal(t, 30*time.Second, cfg.Notifications.PollInterval())
	assert.Equal(t, 3, cfg.Notifications.ToastLimit)
	assert.False(t, cfg.Notifications.Sound)

	viewer := cfg.ViewerContext()
	assert.Equal(t, "u-7", viewer.UserID)
	assert.True(t, viewer.IsAdmin())
	assert.Equal(t, BranchID("b-south"), viewer.EffectiveBranch())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TOOLROOM_VIEWER_HOME_BRANCH", "b-env")
	t.Setenv("TOOLROOM_EVENT_SOURCE_DSN", "host=db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "b-env", cfg.Viewer.HomeBranch)
	assert.Equal(t, "host=db", cfg.EventSource.DSN)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Viewer.HomeBranch = "b-east"
	cfg.Notifications.LedgerSize = 40

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "b-east", loaded.Viewer.HomeBranch)
	assert.Equal(t, 40, loaded.Notifications.LedgerSize)
}

func TestViewerContext_StaffIgnoresSimulation(t *testing.T) {
	v := ViewerContext{HomeBranch: "b-1", Role: RoleStaff, SimulatedBranch: "b-2"}
	assert.Equal(t, BranchID("b-1"), v.EffectiveBranch())

	v.Role = RoleAdmin
	assert.Equal(t, BranchID("b-2"), v.EffectiveBranch())
}
