package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDeploymentMetrics(t *testing.T) {
	m := NewMetrics("")
	m.RecordInfo("v0.1.0")
	m.RecordUp()
	m.RecordDeployment("Greeter")
	m.RecordDeploymentFailure("Greeter")
	m.RecordDeploymentFailure("Greeter")

	require.Equal(t, 1.0, testutil.ToFloat64(m.info.WithLabelValues("v0.1.0")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.up))
	require.Equal(t, 1.0, testutil.ToFloat64(m.deployments.Total.WithLabelValues("Greeter")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.failedDeployments.WithLabelValues("Greeter")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["op_deployer_default_up"])
	require.True(t, names["op_deployer_default_deployments_total"])
	require.True(t, names["op_deployer_default_txmgr_pending_txs"])
}

func TestNoopMetrics(t *testing.T) {
	NoopMetrics.RecordInfo("v0.1.0")
	NoopMetrics.RecordDeployment("Greeter")
	NoopMetrics.RecordPendingTx(1)
	require.NoError(t, NoopMetrics.Serve(context.Background(), "", 0))
}
