package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"libraflow/internal/catalog"
	"libraflow/internal/chaos"
	"libraflow/internal/clients"
	"libraflow/internal/platform/logger"
	"libraflow/internal/policy"
)

var opts struct {
	target   string
	copies   int
	users    int
	attempts int
	pause    time.Duration
	observe  time.Duration
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "chaos",
	Short: "Run contention experiments against a circulation server",
	Long: `chaos registers throwaway members and an item on the target server, then
runs the last-copy and duplicate-reservation experiments against it and
prints the results as JSON. It exits non-zero when a hypothesis fails.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.target, "target", "http://localhost:8082", "base URL of the circulation server")
	f.IntVar(&opts.copies, "copies", 1, "copies of the contested item")
	f.IntVar(&opts.users, "users", 25, "concurrent borrowers")
	f.IntVar(&opts.attempts, "attempts", 20, "concurrent reservations by one member")
	f.DurationVar(&opts.pause, "pause", 2*time.Second, "wait between experiments")
	f.DurationVar(&opts.observe, "observe", 0, "observation window per experiment")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	log := logger.New(os.Stderr, opts.logLevel, "text")

	client := clients.New(opts.target)
	itemID, users, err := seed(ctx, client)
	if err != nil {
		return fmt.Errorf("seed target: %w", err)
	}

	contention := chaos.LastCopyContention(client, client, itemID, users)
	duplicate := chaos.DuplicateReservation(client, client, itemID, users[0], opts.attempts)
	contention.Duration, duplicate.Duration = opts.observe, opts.observe

	runner := chaos.NewRunner(chaos.WithLogger(log))
	results, err := runner.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "circulation contention",
		Scenarios: []chaos.Experiment{contention, duplicate},
		Pause:     opts.pause,
	})
	if err != nil {
		return err
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	var failed []error
	for _, res := range results {
		if !res.HypothesisHeld {
			failed = append(failed, fmt.Errorf("%s: hypothesis violated", res.ExperimentName))
		}
	}
	return errors.Join(failed...)
}

func seed(ctx context.Context, client *clients.Client) (uuid.UUID, []uuid.UUID, error) {
	tag := uuid.NewString()[:8]
	librarian, err := client.RegisterMember(ctx, "chaos librarian", "chaos-librarian-"+tag+"@example.org", policy.Librarian)
	if err != nil {
		return uuid.Nil, nil, err
	}
	item, err := client.AddItem(ctx, librarian.ID, "Chaos fixture "+tag, "", catalog.PrintedBook, opts.copies)
	if err != nil {
		return uuid.Nil, nil, err
	}

	users := make([]uuid.UUID, 0, opts.users)
	for i := range opts.users {
		m, err := client.RegisterMember(ctx, fmt.Sprintf("chaos reader %d", i), fmt.Sprintf("chaos-%s-%d@example.org", tag, i), policy.Student)
		if err != nil {
			return uuid.Nil, nil, err
		}
		users = append(users, m.ID)
	}
	if len(users) == 0 {
		return uuid.Nil, nil, errors.New("at least one user is required")
	}
	return item.ID, users, nil
}
