package migration

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// FilterMigrationJobs keeps the jobs submitted by this tool, in order.
func FilterMigrationJobs(jobs []models.JobResult) []models.JobResult {
	out := []models.JobResult{}
	for _, j := range jobs {
		if j.IsMigration() {
			out = append(out, j)
		}
	}
	return out
}

// ListMigrationJobs lists the migration jobs of every reachable Central
// application, with owning application, deep link and device progress.
// Applications are queried concurrently; results keep application order.
func (o *Orchestrator) ListMigrationJobs(ctx context.Context) ([]models.JobResult, error) {
	apps, err := o.svc.ListCentralApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing central applications: %w", err)
	}

	perApp := make([][]models.JobResult, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	for i, app := range apps {
		g.Go(func() error {
			jobs, err := o.appJobs(gctx, app)
			if err != nil {
				return fmt.Errorf("listing jobs of %s: %w", app.Subdomain, err)
			}
			perApp[i] = jobs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []models.JobResult{}
	for _, jobs := range perApp {
		all = append(all, jobs...)
	}
	return all, nil
}

func (o *Orchestrator) appJobs(ctx context.Context, app models.CentralApp) ([]models.JobResult, error) {
	central := o.svc.Central(o.svc.CentralHost(app.Subdomain))
	jobs, err := central.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	jobs = FilterMigrationJobs(jobs)

	name := app.DisplayName
	if name == "" {
		name = app.Name
	}
	for i := range jobs {
		jobs[i].AppName = name
		jobs[i].JobLink = models.JobLinkFor(app.Subdomain, o.svc.CentralDomain(), jobs[i].ID)

		progress, err := central.JobProgress(ctx, jobs[i].ID)
		if err != nil {
			slog.Warn("Failed to read job progress", "app", app.Subdomain, "job", jobs[i].ID, logger.Err(err))
			continue
		}
		jobs[i].Progress = &progress
	}
	return jobs, nil
}
