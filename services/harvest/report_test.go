package harvest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeManifestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComposeReportFailureAttachesPartialFiles(t *testing.T) {
	dir := t.TempDir()
	raw := writeManifestFile(t, dir, "evcs_data_January_02_2006_15_04.json", `{"stations":[]}`)

	summary := Summary{
		RunID:     "abcd1234",
		Timestamp: time.Now(),
		Manifest:  []string{raw},
		Err:       errors.New("export: disk full"),
	}

	msg := ComposeReport(context.Background(), summary, "ops@example.com")
	require.Contains(t, msg.Subject, "failed")
	require.Contains(t, msg.HTML, "disk full")
	require.Contains(t, msg.HTML, filepath.Base(raw))

	require.Len(t, msg.Attachments, 1)
	require.Equal(t, filepath.Base(raw), msg.Attachments[0].Name)
	require.Equal(t, `{"stations":[]}`, string(msg.Attachments[0].Content))
}

func TestComposeReportFailureWithoutFiles(t *testing.T) {
	summary := Summary{
		RunID:     "abcd1234",
		Timestamp: time.Now(),
		Err:       errors.New("navigation timed out"),
	}

	msg := ComposeReport(context.Background(), summary, "ops@example.com")
	require.Contains(t, msg.HTML, "No files were generated.")
	require.Empty(t, msg.Attachments)
}

func TestComposeReportSkipsUnreadableAttachment(t *testing.T) {
	dir := t.TempDir()
	raw := writeManifestFile(t, dir, "evcs_data.json", `{}`)
	missing := filepath.Join(dir, "evcs_data.csv")

	summary := Summary{
		RunID:     "abcd1234",
		Timestamp: time.Now(),
		Stations:  1,
		Manifest:  []string{raw, missing},
	}

	msg := ComposeReport(context.Background(), summary, "ops@example.com")
	require.Len(t, msg.Attachments, 1)
	require.Equal(t, filepath.Base(raw), msg.Attachments[0].Name)
}
