// Package schedule runs periodic pool snapshots.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	vaultUC "github.com/gabrieltemtsen/clenja/internal/usecase/vault"
)

// DefaultSpec fires every minute, on second zero.
const DefaultSpec = "0 * * * * *"

type PoolReader interface {
	Pool(ctx context.Context) (*vaultUC.PoolDTO, error)
}

type Publisher interface {
	Set(p *vaultUC.PoolDTO)
}

type Snapshotter struct {
	pools   PoolReader
	pub     Publisher
	log     logrus.FieldLogger
	timeout time.Duration
}

func NewSnapshotter(pools PoolReader, pub Publisher, log logrus.FieldLogger) *Snapshotter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Snapshotter{pools: pools, pub: pub, log: log, timeout: 10 * time.Second}
}

// Snapshot reads the pool once, logs it and publishes it.
func (s *Snapshotter) Snapshot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.pools.Pool(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if s.pub != nil {
		s.pub.Set(p)
	}
	s.log.WithFields(logrus.Fields{
		"pool_id":             p.PoolID,
		"total_assets":        p.TotalAssets.String(),
		"total_shares":        p.TotalShares.String(),
		"outstanding_loans":   p.OutstandingLoans.String(),
		"available_liquidity": p.AvailableLiquidity.String(),
		"utilization_bps":     p.UtilizationBps.String(),
		"share_price":         p.SharePrice.String(),
	}).Info("pool snapshot")
	return nil
}

// Run takes one snapshot immediately, then one per cron tick until ctx is done.
func (s *Snapshotter) Run(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		if err := s.Snapshot(ctx); err != nil {
			s.log.WithError(err).Warn("pool snapshot failed")
		}
	}); err != nil {
		return fmt.Errorf("snapshot schedule %q: %w", spec, err)
	}

	if err := s.Snapshot(ctx); err != nil {
		s.log.WithError(err).Warn("pool snapshot failed")
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ValidSpec reports whether spec parses as a seconds-first cron expression.
func ValidSpec(spec string) error {
	_, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec)
	return err
}
