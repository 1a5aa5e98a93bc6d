package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/dcSpark/op-deployer/op-service/metrics"
	txmetrics "github.com/dcSpark/op-deployer/op-service/txmgr/metrics"
)

const Namespace = "op_deployer"

type Metricer interface {
	RecordInfo(version string)
	RecordUp()
	RecordDeployment(contract string)
	RecordDeploymentFailure(contract string)

	// Records all transaction manager metrics
	txmetrics.TxMetricer

	Serve(ctx context.Context, host string, port int) error
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	txmetrics.TxMetrics

	info *prometheus.GaugeVec
	up   prometheus.Gauge

	deployments       opmetrics.EventVec
	failedDeployments *prometheus.CounterVec
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		TxMetrics: txmetrics.MakeTxMetrics(ns, factory),

		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the op-deployer has finished starting up",
		}),

		deployments: opmetrics.NewEventVec(factory, ns, "", "deployments", "contract deployments", []string{"contract"}),
		failedDeployments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deployment_failures_total",
			Help:      "Number of contract deployments that did not produce a contract",
		}, []string{"contract"}),
	}
}

func (m *Metrics) Serve(ctx context.Context, host string, port int) error {
	return opmetrics.ListenAndServe(ctx, m.registry, host, port)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordInfo sets a pseudo-metric that contains versioning and
// config info for the op-deployer.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordDeployment(contract string) {
	m.deployments.Record(contract)
}

func (m *Metrics) RecordDeploymentFailure(contract string) {
	m.failedDeployments.WithLabelValues(contract).Inc()
}
