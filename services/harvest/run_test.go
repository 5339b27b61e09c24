package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"evcs-harvester/lib/notify"
)

type fakeSource struct {
	batches  [][]map[string]any
	warnings []string
	err      error
	closed   bool
}

func (s *fakeSource) Load(context.Context) ([][]map[string]any, []string, error) {
	return s.batches, s.warnings, s.err
}

func (s *fakeSource) Close() {
	s.closed = true
}

type fakeNotifier struct {
	messages []notify.Message
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

func testRunner(t *testing.T, source *fakeSource, notifier *fakeNotifier) *Runner {
	t.Helper()
	return &Runner{
		Config: Config{
			TargetURL: DefaultTargetURL,
			OutputDir: t.TempDir(),
			Notify:    notify.Config{Recipient: "ops@example.com"},
		},
		Notifier: notifier,
		newSource: func(context.Context) (Source, error) {
			return source, nil
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	source := &fakeSource{batches: [][]map[string]any{{
		chargepoint(stationRecord(float64(1), "SM North EDSA"),
			map[string]any{"mode": "Mode 4", "charging_protocol": "CCS"}),
		chargepoint(stationRecord(float64(2), "Ayala Malls Manila Bay"), nil),
	}}}
	notifier := &fakeNotifier{}

	result := testRunner(t, source, notifier).Run(context.Background())
	require.NoError(t, result.Err)
	require.Equal(t, StateNotified, result.State)
	require.Equal(t, 2, result.Stations)
	require.Equal(t, 2, result.Chargepoints)
	require.True(t, source.closed)

	// raw json first, then the four tabular exports
	require.Len(t, result.Manifest, 5)
	require.Equal(t, ".json", filepath.Ext(result.Manifest[0]))

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	require.Equal(t, "ops@example.com", msg.Recipient)
	require.Contains(t, msg.Subject, "EVCS data export")
	require.Len(t, msg.Attachments, 5)
}

func TestRunNoStationData(t *testing.T) {
	source := &fakeSource{
		batches:  [][]map[string]any{{{"region": "NCR"}}},
		warnings: []string{"skipping response from https://evindustry.ph/evcs-locations: bad json"},
	}
	notifier := &fakeNotifier{}

	result := testRunner(t, source, notifier).Run(context.Background())
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "no station data found")
	require.True(t, source.closed)
	require.Empty(t, result.Manifest)

	// the failure report still goes out, warnings included
	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	require.Contains(t, msg.Subject, "failed")
	require.Contains(t, msg.HTML, "no station data found")
	require.Contains(t, msg.HTML, "bad json")
	require.Empty(t, msg.Attachments)
}

func TestRunScrapeFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("browser crashed")}
	notifier := &fakeNotifier{}

	result := testRunner(t, source, notifier).Run(context.Background())
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "browser crashed")
	require.True(t, source.closed)

	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0].HTML, "browser crashed")
}

func TestRunNotifierFailureDoesNotMaskSuccess(t *testing.T) {
	source := &fakeSource{batches: [][]map[string]any{{
		chargepoint(stationRecord(float64(1), "SM North EDSA"),
			map[string]any{"mode": "Mode 4"}),
	}}}
	notifier := &fakeNotifier{err: errors.New("smtp refused")}

	result := testRunner(t, source, notifier).Run(context.Background())
	require.NoError(t, result.Err)
	require.Equal(t, StateExported, result.State)
	require.Len(t, result.Manifest, 5)
}
