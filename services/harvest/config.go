package harvest

import (
	"os"
	"strconv"
	"strings"
	"time"

	"evcs-harvester/lib/browser"
	"evcs-harvester/lib/configutil"
	"evcs-harvester/lib/notify"
)

const (
	DefaultTargetURL = "https://evindustry.ph/evcs-locations"
	DefaultRecipient = "jimbarcos01@gmail.com"
)

type BrowserConfig struct {
	// colon-separated in the BROWSER_PATHS variable
	ExecPaths []string `json:"exec_paths"`
	Headless  *bool    `json:"headless"`
	UserAgent string   `json:"user_agent"`
}

type Config struct {
	TargetURL string        `json:"target_url"`
	OutputDir string        `json:"output_dir"`
	Notify    notify.Config `json:"notify"`
	Browser   BrowserConfig `json:"browser"`
	// page settle time after navigation, seconds
	SettleSeconds int `json:"settle_seconds"`
}

// LoadConfig reads harvest.json5 (plus harvest.local.json5 when
// present) and then lets environment variables override individual
// fields, so the same binary works from a config file or a bare
// crontab entry.
func LoadConfig() (Config, error) {
	c, err := configutil.ReadConfig[Config]("harvest.json5")
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	c.TargetURL = configutil.Env("TARGET_URL", c.TargetURL)
	c.OutputDir = configutil.Env("OUTPUT_DIR", c.OutputDir)
	c.Notify.APIKey = configutil.Env("EMAIL_API_KEY", c.Notify.APIKey)
	c.Notify.Recipient = configutil.Env("NOTIFICATION_EMAIL", c.Notify.Recipient)
	c.Notify.SenderName = configutil.Env("SENDER_NAME", c.Notify.SenderName)
	c.Notify.SenderEmail = configutil.Env("SENDER_EMAIL", c.Notify.SenderEmail)
	c.Notify.Smtp.Server = configutil.Env("SMTP_SERVER", c.Notify.Smtp.Server)
	c.Notify.Smtp.EmailAddress = configutil.Env("SMTP_EMAIL", c.Notify.Smtp.EmailAddress)
	c.Notify.Smtp.Password = configutil.Env("SMTP_PASSWORD", c.Notify.Smtp.Password)
	if port := os.Getenv("SMTP_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, err
		}
		c.Notify.Smtp.Port = n
	}
	if paths := os.Getenv("BROWSER_PATHS"); paths != "" {
		c.Browser.ExecPaths = strings.Split(paths, ":")
	}
	if headless := os.Getenv("HEADLESS"); headless != "" {
		v, err := strconv.ParseBool(headless)
		if err != nil {
			return Config{}, err
		}
		c.Browser.Headless = &v
	}

	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Config) {
	if c.TargetURL == "" {
		c.TargetURL = DefaultTargetURL
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Notify.Recipient == "" {
		c.Notify.Recipient = DefaultRecipient
	}
	if c.Notify.SenderName == "" {
		c.Notify.SenderName = "EVCS Harvester"
	}
	if c.Notify.SenderEmail == "" {
		c.Notify.SenderEmail = c.Notify.Smtp.EmailAddress
	}
	if c.Notify.SenderEmail == "" {
		c.Notify.SenderEmail = DefaultRecipient
	}
	if c.Notify.Smtp.Port == 0 {
		c.Notify.Smtp.Port = 587
	}
	if c.SettleSeconds <= 0 {
		c.SettleSeconds = 5
	}
}

func (c Config) BrowserOptions() browser.Options {
	headless := true
	if c.Browser.Headless != nil {
		headless = *c.Browser.Headless
	}
	return browser.Options{
		ExecPaths: c.Browser.ExecPaths,
		Headless:  headless,
		UserAgent: c.Browser.UserAgent,
	}
}

func (c Config) Settle() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}
