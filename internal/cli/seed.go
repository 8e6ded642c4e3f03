package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/techrank/internal/domain/model"
	"github.com/spf13/cobra"
)

// Default seeding parameters.
const (
	defaultSeedRecords = 200
	defaultSeedDays    = 30
	defaultSeedWorkers = 8
	serviceTimeMin     = 5.0
	serviceTimeRange   = 115.0
	firstResponseMin   = 1.0
	firstResponseRange = 29.0
)

// ErrVerification is returned when the server's rankings disagree with what
// was submitted.
var ErrVerification = errors.New("verification failed")

// SeedConfig controls a seeding run.
type SeedConfig struct {
	Records     int
	Technicians int
	Days        int
	Workers     int
	Replays     int
	Seed        uint64
	Now         time.Time
}

// SeedStats summarizes a seeding run.
type SeedStats struct {
	Submitted int64
	Created   int64
	Replayed  int64
	Failed    int64
	Duration  time.Duration
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	cfg := SeedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Submit generated service records and verify the rankings",
		Long: `seed submits random service records concurrently, each with its own
Idempotency-Key, optionally replays some of them, and then checks that every
ranking the server returns is ordered by its sort key and that the call
counts add up.`,
		Example: `  techrankctl seed --records 1000 --technicians 5 --days 60`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Now = time.Now().UTC()
			stats, err := Seed(cmd.Context(), opts.client(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %d records in %s (created %d, replayed %d, failed %d)\n",
				stats.Submitted, stats.Duration.Round(time.Millisecond), stats.Created, stats.Replayed, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Records, "records", "n", defaultSeedRecords, "Number of records to generate")
	cmd.Flags().IntVarP(&cfg.Technicians, "technicians", "t", 0, "Technicians to create before seeding")
	cmd.Flags().IntVarP(&cfg.Days, "days", "d", defaultSeedDays, "Spread record dates over this many past days")
	cmd.Flags().IntVarP(&cfg.Workers, "workers", "w", defaultSeedWorkers, "Concurrent submitters")
	cmd.Flags().IntVar(&cfg.Replays, "replays", 0, "Records to submit a second time with the same key")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0 picks one)")

	return cmd
}

// Seed runs a full seeding pass against c and verifies the outcome.
func Seed(ctx context.Context, c *Client, cfg SeedConfig, out io.Writer) (SeedStats, error) {
	var stats SeedStats
	start := time.Now()

	if cfg.Records < 0 || cfg.Days < 1 || cfg.Workers < 1 || cfg.Replays < 0 || cfg.Replays > cfg.Records {
		return stats, fmt.Errorf("invalid seed parameters: records=%d days=%d workers=%d replays=%d",
			cfg.Records, cfg.Days, cfg.Workers, cfg.Replays)
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64()
	}

	if err := c.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	for i := range cfg.Technicians {
		if _, err := c.AddTechnician(ctx, fmt.Sprintf("Seeded Technician %d", i+1)); err != nil {
			return stats, fmt.Errorf("add technician: %w", err)
		}
	}

	before, err := c.Technicians(ctx, "", "")
	if err != nil {
		return stats, fmt.Errorf("list technicians: %w", err)
	}
	if len(before) == 0 {
		return stats, errors.New("server has no technicians; pass --technicians")
	}
	fmt.Fprintf(out, "seeding %d records across %d technicians (seed %d)\n", cfg.Records, len(before), cfg.Seed)

	jobs := generateRecords(cfg, before)
	for i := range cfg.Replays {
		jobs = append(jobs, jobs[i])
	}
	submitRecords(ctx, c, cfg.Workers, jobs, &stats)
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d record submissions failed", stats.Failed)
	}
	if stats.Replayed != int64(cfg.Replays) {
		return stats, fmt.Errorf("%w: expected %d replays, server reported %d", ErrVerification, cfg.Replays, stats.Replayed)
	}

	return stats, verifySeed(ctx, c, totalCalls(before)+int(stats.Created))
}

type recordJob struct {
	key string
	req RecordRequest
}

// generateRecords builds cfg.Records random records for techs.
func generateRecords(cfg SeedConfig, techs []model.Technician) []recordJob {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1))
	jobs := make([]recordJob, 0, cfg.Records+cfg.Replays)
	for range cfg.Records {
		tech := techs[rng.IntN(len(techs))]
		daysAgo := rng.IntN(cfg.Days)
		date := cfg.Now.AddDate(0, 0, -daysAgo).Truncate(time.Minute)
		jobs = append(jobs, recordJob{
			key: uuid.NewString(),
			req: RecordRequest{
				TechnicianID:      tech.ID,
				Date:              date.Format(time.RFC3339),
				ServiceTime:       round1(serviceTimeMin + rng.Float64()*serviceTimeRange),
				FirstResponseTime: round1(firstResponseMin + rng.Float64()*firstResponseRange),
				Rating:            float64(1 + rng.IntN(int(model.MaxRating))),
			},
		})
	}
	return jobs
}

// submitRecords posts jobs with a pool of workers.
func submitRecords(ctx context.Context, c *Client, workers int, jobs []recordJob, stats *SeedStats) {
	ch := make(chan recordJob, workers*2)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				atomic.AddInt64(&stats.Submitted, 1)
				_, replayed, err := c.AddRecord(ctx, job.key, job.req)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.Failed, 1)
				case replayed:
					atomic.AddInt64(&stats.Replayed, 1)
				default:
					atomic.AddInt64(&stats.Created, 1)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case ch <- job:
			}
		}
	}()

	wg.Wait()
}

// verifySeed checks every sort order and the call total.
func verifySeed(ctx context.Context, c *Client, wantCalls int) error {
	for _, key := range model.SortKeys() {
		rows, err := c.Rankings(ctx, RankingQuery{Sort: string(key)})
		if err != nil {
			return fmt.Errorf("rankings by %s: %w", key, err)
		}
		if err := verifyRanking(key, rows); err != nil {
			return err
		}
	}

	ov, err := c.Overview(ctx, "", "")
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}
	if ov.TotalCalls != wantCalls {
		return fmt.Errorf("%w: overview counts %d calls, expected %d", ErrVerification, ov.TotalCalls, wantCalls)
	}
	return nil
}

// verifyRanking checks ranks run 1..n and values never move against key.
func verifyRanking(key model.SortKey, rows []RankedTechnician) error {
	for i, r := range rows {
		if r.Rank != i+1 {
			return fmt.Errorf("%w: %s ranking has rank %d at position %d", ErrVerification, key, r.Rank, i+1)
		}
		if i == 0 {
			continue
		}
		prev, cur := metricValue(key, rows[i-1].Technician), metricValue(key, r.Technician)
		if key.Descending() && cur > prev || !key.Descending() && cur < prev {
			return fmt.Errorf("%w: %s ranking out of order at rank %d (%g after %g)", ErrVerification, key, r.Rank, cur, prev)
		}
	}
	return nil
}

func metricValue(key model.SortKey, t model.Technician) float64 {
	switch key {
	case model.SortByAvgServiceTime:
		return t.AvgServiceTime
	case model.SortByFirstResponseTime:
		return t.AvgFirstResponseTime
	case model.SortByRating:
		return t.AvgRating
	default:
		return float64(t.TotalCalls)
	}
}

func totalCalls(techs []model.Technician) int {
	n := 0
	for _, t := range techs {
		n += t.TotalCalls
	}
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
