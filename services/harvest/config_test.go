package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TARGET_URL", "")
	t.Setenv("OUTPUT_DIR", "")
	t.Setenv("NOTIFICATION_EMAIL", "")
	t.Setenv("HEADLESS", "")
	t.Setenv("BROWSER_PATHS", "")
	t.Setenv("SMTP_PORT", "")

	c, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, DefaultTargetURL, c.TargetURL)
	require.Equal(t, ".", c.OutputDir)
	require.Equal(t, DefaultRecipient, c.Notify.Recipient)
	require.Equal(t, 587, c.Notify.Smtp.Port)
	require.Equal(t, 5*time.Second, c.Settle())
	require.True(t, c.BrowserOptions().Headless)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TARGET_URL", "https://example.com/listings")
	t.Setenv("OUTPUT_DIR", "/tmp/exports")
	t.Setenv("NOTIFICATION_EMAIL", "ops@example.com")
	t.Setenv("EMAIL_API_KEY", "xkeysib-abc")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("BROWSER_PATHS", "/usr/bin/chromium:/usr/bin/microsoft-edge")
	t.Setenv("HEADLESS", "false")

	c, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://example.com/listings", c.TargetURL)
	require.Equal(t, "/tmp/exports", c.OutputDir)
	require.Equal(t, "ops@example.com", c.Notify.Recipient)
	require.Equal(t, "xkeysib-abc", c.Notify.APIKey)
	require.Equal(t, 2525, c.Notify.Smtp.Port)
	require.Equal(t,
		[]string{"/usr/bin/chromium", "/usr/bin/microsoft-edge"},
		c.BrowserOptions().ExecPaths)
	require.False(t, c.BrowserOptions().Headless)
}

func TestLoadConfigBadValues(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-port")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("SMTP_PORT", "")
	t.Setenv("HEADLESS", "sideways")
	_, err = LoadConfig()
	require.Error(t, err)
}
