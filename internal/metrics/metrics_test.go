package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventDropped()
	m.EventDropped()
	m.MessagePosted()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ChannelCreated()

	require.Equal(t, 2.0, testutil.ToFloat64(m.dropped))
	require.Equal(t, 1.0, testutil.ToFloat64(m.posted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	require.Equal(t, 1.0, testutil.ToFloat64(m.channels))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}
