package connectivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kpeterman/alpacatrader/internal/config"
)

func testCfg() config.ConnectivityConfig {
	return config.ConnectivityConfig{
		MaxRetryDelaySeconds:  60,
		DegradedThreshold:     2,
		DisconnectedThreshold: 4,
		BackoffMultiplier:     2.0,
	}
}

func TestNewStartsConnected(t *testing.T) {
	s := New(testCfg())
	require.Equal(t, Connected, s.StatusNow())
	require.True(t, s.ShouldAttemptConnection())
}

func TestReportFailureEscalatesThroughThresholds(t *testing.T) {
	s := New(testCfg())
	now := time.Now()
	s.now = func() time.Time { return now }

	s.ReportFailure("timeout")
	require.Equal(t, Connected, s.StatusNow())

	s.ReportFailure("timeout")
	require.Equal(t, Degraded, s.StatusNow())

	s.ReportFailure("timeout")
	s.ReportFailure("timeout")
	require.Equal(t, Disconnected, s.StatusNow())
}

func TestReportFailureBacksOffAndCapsAtMax(t *testing.T) {
	s := New(testCfg())
	now := time.Now()
	s.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		s.ReportFailure("timeout")
	}
	snap := s.Snapshot()
	require.LessOrEqual(t, snap.RetryDelaySeconds, float64(testCfg().MaxRetryDelaySeconds))
}

func TestShouldAttemptConnectionRespectsBackoffWindow(t *testing.T) {
	s := New(testCfg())
	now := time.Now()
	s.now = func() time.Time { return now }

	s.ReportFailure("timeout")
	s.ReportFailure("timeout")
	require.False(t, s.ShouldAttemptConnection())

	now = now.Add(4 * time.Second)
	require.True(t, s.ShouldAttemptConnection())
}

func TestReportSuccessResetsState(t *testing.T) {
	s := New(testCfg())
	s.ReportFailure("timeout")
	s.ReportFailure("timeout")
	require.Equal(t, Degraded, s.StatusNow())

	s.ReportSuccess()
	require.Equal(t, Connected, s.StatusNow())
	require.Equal(t, 0, s.Snapshot().ConsecutiveFailures)
}

func TestSecondsUntilRetryCountsDownToZero(t *testing.T) {
	s := New(testCfg())
	now := time.Now()
	s.now = func() time.Time { return now }

	s.ReportFailure("timeout")
	s.ReportFailure("timeout")
	require.Greater(t, s.SecondsUntilRetry(), 0)

	now = now.Add(10 * time.Second)
	require.Equal(t, 0, s.SecondsUntilRetry())
}
