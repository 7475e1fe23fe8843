package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fleetcast/internal/api"
	"github.com/wonny/fleetcast/internal/api/handlers"
	"github.com/wonny/fleetcast/internal/audit"
	"github.com/wonny/fleetcast/internal/forecast"
	"github.com/wonny/fleetcast/internal/s2_features"
	"github.com/wonny/fleetcast/internal/scheduler"
	"github.com/wonny/fleetcast/internal/scheduler/jobs"
	"github.com/wonny/fleetcast/pkg/httputil"
	"github.com/wonny/fleetcast/pkg/logger"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Job scheduler management",
	Long: `Manage scheduled jobs for the demand pipeline.

Jobs:
  feature_store_build  매일 02:00 - 최근 lookback 일 증분 빌드 (전체 활성 테넌트)
  forecast_pipeline    매일 03:00 - 학습/선택/예측 발행 (전체 활성 테넌트)

Commands:
  start   - 스케줄러 + ops 서버 (/healthz, /metrics, /jobs) 시작
  list    - 등록된 잡 목록
  run     - 잡 즉시 실행 (포그라운드, 재시도 포함)
  status  - 실행 중인 스케줄러의 잡 통계 조회`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler",
	RunE:  startScheduler,
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scheduled jobs",
	RunE:  listJobs,
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [job-name]",
	Short: "Run a specific job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job statistics from a running scheduler",
	Long: `실행 중인 스케줄러의 /jobs 엔드포인트를 조회합니다.

Example:
  go run ./cmd/fleetcast scheduler status --addr http://localhost:9090`,
	RunE: showStatus,
}

var (
	schedulerAddr    string
	schedulerRetries int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerListCmd, schedulerRunCmd, schedulerStatusCmd)

	schedulerCmd.PersistentFlags().IntVar(&schedulerRetries, "retries", 3, "job retries after the first attempt")
	schedulerStatusCmd.Flags().StringVar(&schedulerAddr, "addr", "http://localhost:9090", "ops server address")
}

func startScheduler(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	sched.Start()

	var srv *api.Server
	srvErr := make(chan error, 1)
	if d.cfg.MetricsEnabled {
		probes := map[string]handlers.Probe{
			"postgres": d.db.Ping,
			"source":   func(ctx context.Context) error { return d.source.PingContext(ctx) },
		}
		if d.redis.Enabled() {
			probes["redis"] = func(ctx context.Context) error { return d.redis.Redis().Ping(ctx).Err() }
		}
		router := api.NewRouter(api.Handlers{
			Health:   handlers.NewHealthHandler(probes, d.log),
			Jobs:     handlers.NewJobsHandler(sched, d.log),
			Forecast: handlers.NewForecastHandler(forecast.NewRepository(d.db.Pool), forecast.NewRunTracker(d.db.Pool), d.log),
			Accuracy: handlers.NewAccuracyHandler(audit.NewAnalyzer(s2_features.NewRepository(d.db.Pool), forecast.NewRepository(d.db.Pool), d.log), d.log),
		}, d.log)
		srv = api.New(d.cfg.MetricsPort, d.log, router)
		go func() { srvErr <- srv.Start() }()
	}

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, j := range sched.Jobs() {
		next := "-"
		if j.Next != nil {
			next = j.Next.Format("2006-01-02 15:04:05 MST")
		}
		fmt.Printf("  - %-20s %-14s next: %s\n", j.Name, j.Schedule, next)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
	}

	fmt.Println("\nShutting down scheduler...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.WithError(err).Warn("Ops server shutdown failed")
		}
	}
	sched.Stop()
	fmt.Println("Scheduler stopped")
	return runErr
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler(cmd.Context())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	return printReport(sched.Jobs(), func() {
		fmt.Println("Registered jobs:")
		for _, j := range sched.Jobs() {
			fmt.Printf("  - %-20s %s\n", j.Name, j.Schedule)
		}
	})
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	ctx := cmd.Context()

	d, sched, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	fmt.Printf("Running job: %s\n", jobName)
	runErr := sched.RunNow(ctx, jobName)
	if errors.Is(runErr, scheduler.ErrJobNotFound) {
		return runErr
	}

	history, err := sched.GetJobHistory(jobName)
	if err != nil {
		return err
	}
	if err := printReport(history.Latest(1), func() {
		if runErr == nil {
			PrintSuccess(fmt.Sprintf("Job %s completed", jobName))
		} else {
			PrintError(fmt.Sprintf("Job %s failed: %v", jobName, runErr))
		}
	}); err != nil {
		return err
	}
	return runErr
}

func showStatus(cmd *cobra.Command, args []string) error {
	client := httputil.NewWithTimeout(logger.Nop(), 5*time.Second).DisableRetry()

	var resp struct {
		Jobs []handlers.JobView `json:"jobs"`
	}
	if err := client.GetJSON(cmd.Context(), schedulerAddr+"/jobs", &resp); err != nil {
		return fmt.Errorf("query scheduler at %s: %w", schedulerAddr, err)
	}

	return printReport(resp, func() {
		fmt.Println("Job Statistics:")
		fmt.Println()
		for _, j := range resp.Jobs {
			stat := j.Stats
			fmt.Printf("📊 %s\n", j.Name)
			fmt.Printf("   Schedule: %s\n", j.Schedule)
			if j.Next != nil {
				fmt.Printf("   Next Run: %s\n", j.Next.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
			fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
			fmt.Printf("   Failures: %d\n", stat.FailureCount)
			if stat.LastSuccess != nil {
				fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
			}
			if stat.LastFailure != nil {
				fmt.Printf("   Last Failure: %s (%s)\n", stat.LastFailure.Format("2006-01-02 15:04:05"), stat.LastError)
			}
			fmt.Println()
		}
	})
}

func initScheduler(ctx context.Context) (*appDeps, *scheduler.Scheduler, error) {
	d, err := initDeps(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	loc := d.pipeline.Meta.Location()
	orch := d.orchestrator()
	pc := d.cfg.Pipeline

	sched := scheduler.New(d.log, loc, scheduler.WithRetry(schedulerRetries, time.Minute))
	for _, job := range []scheduler.Job{
		jobs.NewFeatureStoreBuildJob(orch, d.scopes, pc.BuildCron, pc.LookbackDays, loc, d.log),
		jobs.NewForecastJob(orch, d.scopes, pc.TrainCron, d.log),
	} {
		if err := sched.AddJob(job); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	return d, sched, nil
}
