// Package metrics publishes pool state as prometheus gauges.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gabrieltemtsen/clenja/internal/domain/vault"
	vaultUC "github.com/gabrieltemtsen/clenja/internal/usecase/vault"
)

type PoolGauges struct {
	totalAssets *prometheus.GaugeVec
	totalShares *prometheus.GaugeVec
	outstanding *prometheus.GaugeVec
	available   *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	sharePrice  *prometheus.GaugeVec
}

func NewPoolGauges(reg prometheus.Registerer) *PoolGauges {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clenja",
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, []string{"pool_id"})
	}
	g := &PoolGauges{
		totalAssets: gauge("total_assets", "Assets under management in base units."),
		totalShares: gauge("total_shares", "Outstanding pool shares."),
		outstanding: gauge("outstanding_loans", "Principal lent out and not yet repaid."),
		available:   gauge("available_liquidity", "Assets free to withdraw or lend."),
		utilization: gauge("utilization_bps", "Outstanding over total assets in basis points."),
		sharePrice:  gauge("share_price", "Assets per share."),
	}
	reg.MustRegister(g.totalAssets, g.totalShares, g.outstanding, g.available, g.utilization, g.sharePrice)
	return g
}

// Set publishes p. Amounts are converted to float64 and lose precision past 2^53.
func (g *PoolGauges) Set(p *vaultUC.PoolDTO) {
	id := strconv.FormatUint(p.PoolID, 10)
	g.totalAssets.WithLabelValues(id).Set(p.TotalAssets.Float64())
	g.totalShares.WithLabelValues(id).Set(p.TotalShares.Float64())
	g.outstanding.WithLabelValues(id).Set(p.OutstandingLoans.Float64())
	g.available.WithLabelValues(id).Set(p.AvailableLiquidity.Float64())
	g.utilization.WithLabelValues(id).Set(p.UtilizationBps.Float64())
	g.sharePrice.WithLabelValues(id).Set(p.SharePrice.Float64() / priceScale)
}

var priceScale = vault.PriceScale.Float64()
