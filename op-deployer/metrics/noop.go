package metrics

import (
	"context"

	txmetrics "github.com/dcSpark/op-deployer/op-service/txmgr/metrics"
)

type noopMetrics struct {
	txmetrics.NoopTxMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordInfo(version string)      {}
func (*noopMetrics) RecordUp()                      {}
func (*noopMetrics) RecordDeployment(string)        {}
func (*noopMetrics) RecordDeploymentFailure(string) {}

func (*noopMetrics) Serve(context.Context, string, int) error {
	return nil
}
