// Command predictor is the terminal client for the EPL Predictor backend.
//
// Usage:
//
//	predictor register                 # Create an account
//	predictor login                    # Exchange credentials for a token
//	predictor logout                   # Drop the stored session
//	predictor whoami                   # Show the current session
//	predictor teams                    # List known clubs
//	predictor predict HOME AWAY        # Predict one fixture
//	predictor simulate HOME AWAY       # Monte Carlo single-fixture simulation
//	predictor health [watch]           # Probe backend health (watch = poll)
//	predictor retrain                  # Trigger a full model retrain
//	predictor stats                    # Admin usage summary
//	predictor season [rounds]          # Season simulation (default 100 rounds)
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/anwrG-p/EPL-Predictor/internal/adminops"
	"github.com/anwrG-p/EPL-Predictor/internal/auth"
	"github.com/anwrG-p/EPL-Predictor/internal/config"
	"github.com/anwrG-p/EPL-Predictor/internal/gateway"
	"github.com/anwrG-p/EPL-Predictor/internal/guard"
	"github.com/anwrG-p/EPL-Predictor/internal/logging"
	"github.com/anwrG-p/EPL-Predictor/internal/metrics"
	"github.com/anwrG-p/EPL-Predictor/internal/predict"
	"github.com/anwrG-p/EPL-Predictor/internal/session"
	"github.com/anwrG-p/EPL-Predictor/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logging.New(
		getenv("LOG_LEVEL", config.DefaultLogLevel),
		getenv("LOG_FORMAT", config.DefaultLogFormat),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Rebuild with configured level/format now that config is loaded.
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug("starting predictor client",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"base_url", cfg.BaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr, logger)
	}

	store := session.NewFileStore(cfg.SessionFile)
	gw, err := gateway.New(cfg, store, gateway.WithLogger(logger))
	if err != nil {
		logger.Error("failed to build gateway client", "error", err)
		os.Exit(1)
	}

	app := &app{
		cfg:      cfg,
		store:    store,
		auth:     auth.NewWorkflow(gw, store, cfg.AdminEmail),
		predict:  predict.NewWorkflow(gw, store),
		adminops: adminops.NewWorkflow(gw, cfg.RetrainTimeout),
		logger:   logger,
	}

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	store    session.Store
	auth     *auth.Workflow
	predict  *predict.Workflow
	adminops *adminops.Workflow
	logger   *slog.Logger
}

// viewFor maps each command onto the view the access guard knows about.
func viewFor(command string) guard.View {
	switch command {
	case "predict", "simulate":
		return guard.ViewPredictor
	case "health", "retrain", "stats", "season":
		return guard.ViewAdmin
	default:
		return guard.ViewLogin
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	if guard.Check(a.store.Get(), viewFor(command)) == guard.RedirectLogin {
		return fmt.Errorf("please sign in first: predictor login")
	}

	switch command {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami()
	case "teams":
		return a.teams()
	case "predict":
		return a.runPredict(ctx, args)
	case "simulate":
		return a.runSimulate(ctx, args)
	case "health":
		return a.health(ctx, args)
	case "retrain":
		return a.retrain(ctx)
	case "stats":
		return a.stats(ctx)
	case "season":
		return a.season(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) register(ctx context.Context) error {
	creds, err := promptCredentials()
	if err != nil {
		return err
	}
	confirm, err := prompt("Confirm password: ")
	if err != nil {
		return err
	}

	res, err := a.auth.Register(ctx, creds, confirm)
	if err != nil && res.Message == "" {
		return err
	}
	fmt.Println(res.Message)
	if res.State == auth.StateFailed {
		os.Exit(1)
	}
	return nil
}

func (a *app) login(ctx context.Context) error {
	creds, err := promptCredentials()
	if err != nil {
		return err
	}

	res, err := a.auth.Login(ctx, creds)
	if err != nil {
		return err
	}
	if res.State != auth.StateAuthenticated {
		return fmt.Errorf("%s", res.Message)
	}

	s := a.store.Get()
	fmt.Printf("Signed in as %s (%s)\n", creds.Email, s.Role)
	return nil
}

func (a *app) logout() error {
	if err := a.auth.Logout(); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func (a *app) whoami() error {
	s := a.store.Get()
	if !s.Authenticated() {
		fmt.Println("Not signed in")
		return nil
	}
	fmt.Printf("Signed in, role: %s\n", s.Role)
	return nil
}

func (a *app) teams() error {
	for _, t := range predict.Teams {
		fmt.Println(t)
	}
	return nil
}

func fixtureArgs(args []string) (predict.Request, error) {
	if len(args) != 2 {
		return predict.Request{}, fmt.Errorf("expected: HOME AWAY (quote names with spaces)")
	}
	return predict.Request{
		HomeTeam: predict.Team(args[0]),
		AwayTeam: predict.Team(args[1]),
	}, nil
}

func (a *app) runPredict(ctx context.Context, args []string) error {
	req, err := fixtureArgs(args)
	if err != nil {
		return err
	}

	r, err := a.predict.Predict(ctx, req)
	if err != nil {
		return fmt.Errorf("%s", predict.Message(err))
	}

	fmt.Printf("%s vs %s\n", req.HomeTeam, req.AwayTeam)
	fmt.Printf("  Home win: %5.1f%%\n", r.Probs.Home*100)
	fmt.Printf("  Draw:     %5.1f%%\n", r.Probs.Draw*100)
	fmt.Printf("  Away win: %5.1f%%\n", r.Probs.Away*100)
	fmt.Printf("  Explanation: %s\n", r.ShapURL)
	return nil
}

func (a *app) runSimulate(ctx context.Context, args []string) error {
	req, err := fixtureArgs(args)
	if err != nil {
		return err
	}

	r, err := a.predict.SimulateMatch(ctx, req)
	if err != nil {
		return fmt.Errorf("%s", predict.Message(err))
	}

	fmt.Printf("%s vs %s (simulated)\n", r.HomeTeam, r.AwayTeam)
	fmt.Printf("  Home win: %5.1f%%\n", r.SimProbs.Home*100)
	fmt.Printf("  Draw:     %5.1f%%\n", r.SimProbs.Draw*100)
	fmt.Printf("  Away win: %5.1f%%\n", r.SimProbs.Away*100)
	return nil
}

func (a *app) health(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "watch" {
		fmt.Printf("Probing every %s, Ctrl-C to stop\n", a.cfg.HealthPollInterval)
		poller := adminops.NewPoller(a.adminops, a.cfg.HealthPollInterval, a.logger)
		poller.Run(ctx)
		return nil
	}

	fmt.Println(a.adminops.CheckHealth(ctx))
	return nil
}

func (a *app) retrain(ctx context.Context) error {
	fmt.Println("Training... (this can take minutes)")
	msg, err := a.adminops.Retrain(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Success: %s\n", msg)
	return nil
}

func (a *app) stats(ctx context.Context) error {
	s, err := a.adminops.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Total predictions: %d\n", s.TotalPredictions)
	return nil
}

func (a *app) season(ctx context.Context, args []string) error {
	rounds := 100
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("rounds must be a number: %q", args[0])
		}
		rounds = n
	}

	rows, err := a.adminops.SimulateSeason(ctx, rounds)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %s\n", "Team", "Avg final rank")
	for _, row := range rows {
		fmt.Printf("%-20s %6.2f\n", row.Team, row.AvgFinalRank)
	}
	return nil
}

func promptCredentials() (auth.Credentials, error) {
	email, err := prompt("Email: ")
	if err != nil {
		return auth.Credentials{}, err
	}
	password, err := prompt("Password: ")
	if err != nil {
		return auth.Credentials{}, err
	}
	return auth.Credentials{Email: email, Password: password}, nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Println("Usage: predictor <command>")
	fmt.Println("Commands: register, login, logout, whoami, teams,")
	fmt.Println("          predict HOME AWAY, simulate HOME AWAY,")
	fmt.Println("          health [watch], retrain, stats, season [rounds]")
}
