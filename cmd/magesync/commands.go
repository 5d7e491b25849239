package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appsync "github.com/magesync/backend/internal/application/integration"
	"github.com/magesync/backend/internal/bootstrap"
	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/interfaces/http/dto"
)

var untilDoneCmd = &cobra.Command{
	Use:   "until-done",
	Short: "Backfill order details until no order is missing them",
	Long: `Repeat the order detail pass until the enumeration comes back
empty, the pass limit is reached or a pass makes no progress.

Examples:
  # Backfill missing details, 200 orders per pass
  magesync until-done

  # Refresh every order, 4 at a time
  magesync until-done --all --concurrency 4`,
	Args: cobra.NoArgs,
	RunE: withApp(runUntilDone),
}

var orderCmd = &cobra.Command{
	Use:   "order <incrementId>",
	Short: "Synchronize the details of one order",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runOrder),
}

var productCmd = &cobra.Command{
	Use:   "product <identifier>",
	Short: "Synchronize one product by id or sku",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runProduct),
}

var runCmd = &cobra.Command{
	Use:       "run <job>",
	Short:     "Run one batch job",
	Long:      "Run one batch pass of order-summaries, customers, order-details, shipping-addresses, products or products-list.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: batchJobs,
	RunE:      withApp(runJob),
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent job runs",
	Args:  cobra.NoArgs,
	RunE:  withApp(listRuns),
}

var batchJobs = []string{
	appsync.JobOrderSummaries,
	appsync.JobCustomers,
	appsync.JobOrderDetails,
	appsync.JobShippingAddresses,
	appsync.JobProducts,
	appsync.JobProductsList,
}

func init() {
	addTuningFlags(untilDoneCmd)
	untilDoneCmd.Flags().Bool("all", false, "Include orders whose details were already fetched")
	untilDoneCmd.Flags().Int("limit", 0, "Orders per pass (default from configuration)")
	untilDoneCmd.Flags().Duration("sleep", 0, "Wait between passes (default from configuration)")
	untilDoneCmd.Flags().Int("max-passes", 0, "Stop after this many passes (default from configuration)")

	addTuningFlags(orderCmd)

	addTuningFlags(productCmd)
	productCmd.Flags().Bool("sku", false, "Treat the identifier as a sku")
	productCmd.Flags().String("store-view", "", "Store view to read")

	addTuningFlags(runCmd)
	runCmd.Flags().Bool("all", false, "Ignore the updated-since window, or include already fetched records")
	runCmd.Flags().String("since", "", "List records updated since this RFC3339 time")
	runCmd.Flags().Int("limit", 0, "Cap the number of targets")
	runCmd.Flags().Int("batch-size", 0, "Products per stock lookup")
	runCmd.Flags().String("store-view", "", "Store view to read")

	runsCmd.Flags().String("job", "", "Only list runs of this job")
	runsCmd.Flags().Int("limit", 20, "Number of runs to list")
}

func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "Targets in flight per window (default from configuration)")
	cmd.Flags().Int("retries", 0, "Retries per target on transport errors and faults")
	cmd.Flags().Duration("pause", 0, "Pause between windows")
}

// tuning reads the tuning flags; flags left unset keep the configured defaults
func tuning(cmd *cobra.Command) appsync.Tuning {
	t := appsync.Tuning{Trigger: cliTrigger}
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		v, _ := flags.GetInt("concurrency")
		t.Concurrency = &v
	}
	if flags.Changed("retries") {
		v, _ := flags.GetInt("retries")
		t.Retries = &v
	}
	if flags.Changed("pause") {
		v, _ := flags.GetDuration("pause")
		t.Pause = &v
	}
	return t
}

func sample(app *bootstrap.App) int {
	return app.Service.Settings().Options.ErrorSample
}

// report prints the run and turns a failed pass into an error exit
func report(cmd *cobra.Command, app *bootstrap.App, r *appsync.RunReport, err error) error {
	if r != nil {
		if perr := printJSON(cmd.OutOrStdout(), dto.NewRunReportDTO(r, sample(app))); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if r != nil && r.Result != nil && r.Result.Status == integration.SyncStatusFailed {
		return fmt.Errorf("%s: every target failed", r.Job)
	}
	return nil
}

func runUntilDone(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")
	maxPasses, _ := cmd.Flags().GetInt("max-passes")

	req := appsync.UntilDoneRequest{
		DetailsRequest: appsync.DetailsRequest{Tuning: tuning(cmd), OnlyMissing: !all, Limit: limit},
		MaxPasses:      maxPasses,
	}
	if cmd.Flags().Changed("sleep") {
		sleep, _ := cmd.Flags().GetDuration("sleep")
		req.Sleep = &sleep
	}

	r, err := app.Service.SyncOrderDetailsUntilDone(ctx, req)
	return report(cmd, app, r, err)
}

func runOrder(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, args []string) error {
	r, err := app.Service.SyncOrder(ctx, args[0], tuning(cmd))
	if r != nil {
		if perr := printJSON(cmd.OutOrStdout(), dto.NewOrderReportDTO(r, sample(app))); perr != nil {
			return perr
		}
	}
	return err
}

func runProduct(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, args []string) error {
	idType := integration.IdentifierTypeID
	if sku, _ := cmd.Flags().GetBool("sku"); sku {
		idType = integration.IdentifierTypeSKU
	}
	storeView, _ := cmd.Flags().GetString("store-view")

	r, err := app.Service.SyncProduct(ctx, args[0], idType, storeView, tuning(cmd))
	return report(cmd, app, r, err)
}

func runJob(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, args []string) error {
	flags := cmd.Flags()
	all, _ := flags.GetBool("all")
	limit, _ := flags.GetInt("limit")
	t := tuning(cmd)

	listing := appsync.ListingRequest{Tuning: t}
	if all {
		listing.UpdatedSince = &time.Time{}
	} else if since, _ := flags.GetString("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		listing.UpdatedSince = &ts
	}

	var (
		r   *appsync.RunReport
		err error
	)
	switch args[0] {
	case appsync.JobOrderSummaries:
		r, err = app.Service.SyncOrderSummaries(ctx, listing)
	case appsync.JobCustomers:
		r, err = app.Service.SyncCustomers(ctx, listing)
	case appsync.JobOrderDetails:
		r, err = app.Service.SyncOrderDetails(ctx, appsync.DetailsRequest{Tuning: t, OnlyMissing: !all, Limit: limit})
	case appsync.JobShippingAddresses:
		r, err = app.Service.SyncShippingAddresses(ctx, appsync.AddressRequest{Tuning: t, OnlyMissing: !all, Limit: limit})
	case appsync.JobProducts:
		batch, _ := flags.GetInt("batch-size")
		storeView, _ := flags.GetString("store-view")
		r, err = app.Service.SyncProducts(ctx, appsync.ProductsRequest{Tuning: t, StoreView: storeView, BatchSize: batch, Limit: limit})
	case appsync.JobProductsList:
		storeView, _ := flags.GetString("store-view")
		r, err = app.Service.SyncProductsList(ctx, appsync.ProductsRequest{Tuning: t, StoreView: storeView, Limit: limit})
	default:
		return fmt.Errorf("unknown job %q", args[0])
	}
	return report(cmd, app, r, err)
}

func listRuns(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, _ []string) error {
	job, _ := cmd.Flags().GetString("job")
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := app.Service.RecentRuns(ctx, job, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), dto.NewSyncRunDTOs(runs, sample(app)))
}
