package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/application"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/bootstrap"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
)

var petID string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recount applicants and close stray applications",
	Long: `Recompute every pet's applicant count and approval from its applications,
and cancel applications left active on adopted or withdrawn pets.

Examples:
  adoptionctl reconcile                 # Reconcile every pet
  adoptionctl reconcile --pet <id>      # Reconcile one pet
  adoptionctl reconcile --json          # Machine-readable report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&petID, "pet", "", "Reconcile a single pet by ID")
}

func runReconcile(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	stores, err := bootstrap.OpenStores(cfg, false, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	sink, closeSink := bootstrap.NewSink(cfg, "adoptionctl", log)
	defer func() { _ = closeSink() }()

	svcs := bootstrap.NewServices(cfg, stores, sink, metrics.New(false), log)

	var reports []application.ReconcileReport
	var runErr error
	if petID != "" {
		id, err := uuid.Parse(petID)
		if err != nil {
			return fmt.Errorf("invalid pet ID %q: %w", petID, err)
		}
		report, err := svcs.Reconcile.ReconcilePet(ctx, id)
		if err != nil {
			return err
		}
		reports = append(reports, *report)
	} else {
		reports, runErr = svcs.Reconcile.ReconcileAll(ctx)
	}

	if jsonOutput {
		if err := printJSON(reports); err != nil {
			return err
		}
		return runErr
	}

	printReports(reports)
	if runErr != nil {
		warning("some pets could not be reconciled")
	}
	return runErr
}

func printReports(reports []application.ReconcileReport) {
	changed := 0
	for _, r := range reports {
		if r.Changed() {
			changed++
		}
	}
	if changed == 0 {
		success("%d pets checked, nothing to repair", len(reports))
		return
	}

	header("Repaired pets")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PET\tCOUNT BEFORE\tCOUNT AFTER\tCANCELLED\tLEASE TAKEN OVER")
	for _, r := range reports {
		if !r.Changed() {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%t\n", r.PetID, r.PreviousCount, r.Count, r.Cancelled, r.LeaseTakenOver)
	}
	_ = w.Flush()
	info("%d of %d pets repaired", changed, len(reports))
}
