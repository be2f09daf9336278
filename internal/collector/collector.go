// Package collector fetches snapshots for a set of regions and aggregates
// them into routes, one aggregator per region merged at the end.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/ads-routes/internal/logging"
	"github.com/unklstewy/ads-routes/pkg/adsb"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// ErrNoData is returned when no region produced any aircraft.
var ErrNoData = errors.New("no aircraft data received")

// Collector runs fetch rounds against one source.
type Collector struct {
	Source  adsb.DataSource
	Regions []adsb.Region
	Options routes.Options

	// Rounds is the number of snapshots accumulated (minimum 1)
	Rounds int

	// Interval is the pause between rounds
	Interval time.Duration

	// Concurrency bounds parallel region fetches; 0 means one per region
	Concurrency int

	// OnFrame, when set, receives every fetched frame before filtering,
	// for example to save it for replay. It may be called concurrently.
	OnFrame func(source string, fetchedAt time.Time, aircraft []adsb.Aircraft)
}

// RegionResult summarises one region over all rounds.
type RegionResult struct {
	Region   string
	Aircraft int
	Stats    routes.Stats
	Err      error
}

// Result is the outcome of Collect.
type Result struct {
	Aggregator *routes.Aggregator
	Regions    []RegionResult

	// Aircraft is the number of positions fed to the aggregators after
	// region filtering and de-duplication
	Aircraft int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Collect runs all rounds and returns the merged aggregation. Failing
// regions are logged and reported in the result; Collect fails only when
// nothing was fetched at all or ctx is cancelled.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	if c.Source == nil {
		return nil, errors.New("no data source")
	}
	regions := c.Regions
	if len(regions) == 0 {
		regions = []adsb.Region{{Name: "global"}}
	}
	rounds := c.Rounds
	if rounds < 1 {
		rounds = 1
	}

	aggs := make([]*routes.Aggregator, len(regions))
	for i := range regions {
		agg, err := routes.NewAggregator(c.Options)
		if err != nil {
			return nil, err
		}
		aggs[i] = agg
	}

	res := &Result{
		StartedAt: time.Now().UTC(),
		Regions:   make([]RegionResult, len(regions)),
	}
	for i, r := range regions {
		res.Regions[i].Region = r.String()
	}

	for round := 1; round <= rounds; round++ {
		if round > 1 && c.Interval > 0 {
			timer := time.NewTimer(c.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		logging.Debugf("Round %d/%d from %s", round, rounds, c.Source.Name())
		if err := c.round(ctx, regions, aggs, res); err != nil {
			return nil, err
		}
	}

	merged := aggs[0]
	for i := range aggs {
		res.Regions[i].Stats = aggs[i].Stats()
		if i > 0 {
			if err := merged.Merge(aggs[i]); err != nil {
				return nil, fmt.Errorf("merge region %s: %w", res.Regions[i].Region, err)
			}
		}
	}
	res.Aggregator = merged
	res.FinishedAt = time.Now().UTC()

	for _, rr := range res.Regions {
		res.Aircraft += rr.Aircraft
	}
	if res.Aircraft == 0 {
		var errs []error
		for _, rr := range res.Regions {
			if rr.Err != nil {
				errs = append(errs, rr.Err)
			}
		}
		if len(errs) > 0 {
			return res, fmt.Errorf("%w: %w", ErrNoData, errors.Join(errs...))
		}
		return res, ErrNoData
	}

	return res, nil
}

// round fetches every region once. A global source is fetched a single
// time and filtered per region.
func (c *Collector) round(ctx context.Context, regions []adsb.Region, aggs []*routes.Aggregator, res *Result) error {
	var shared []adsb.Aircraft
	global := adsb.IsGlobal(c.Source)
	if global {
		fetchedAt := time.Now().UTC()
		aircraft, err := c.Source.Snapshot(ctx, adsb.Region{})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("✗ Fetch from %s failed: %v", c.Source.Name(), err)
			for i := range res.Regions {
				res.Regions[i].Err = err
			}
			return nil
		}
		log.Printf("✓ Fetched %d aircraft from %s", len(aircraft), c.Source.Name())
		if c.OnFrame != nil {
			c.OnFrame(c.Source.Name(), fetchedAt, aircraft)
		}
		shared = aircraft
	}

	// One ICAO counts once per round even if regions overlap
	var seen sync.Map

	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			var aircraft []adsb.Aircraft
			if global {
				aircraft = adsb.Filter(shared, region)
			} else {
				fetchedAt := time.Now().UTC()
				fetched, err := c.Source.Snapshot(gctx, region)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					log.Printf("✗ Region %s: %v", region, err)
					res.Regions[i].Err = err
					return nil
				}
				if c.OnFrame != nil {
					c.OnFrame(c.Source.Name(), fetchedAt, fetched)
				}
				aircraft = fetched
			}

			n := 0
			for _, ac := range aircraft {
				if ac.ICAO != "" {
					if _, dup := seen.LoadOrStore(ac.ICAO, struct{}{}); dup {
						continue
					}
				}
				if err := aggs[i].Add(ac.Observation()); err != nil {
					logging.Debugf("Region %s: skipped %s: %v", region, ac.ICAO, err)
				}
				n++
			}
			res.Regions[i].Aircraft += n
			logging.Debugf("Region %s: %d aircraft", region, n)
			return nil
		})
	}

	return g.Wait()
}
