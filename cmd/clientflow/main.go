package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edumesones/clientflow-pro/internal/agents"
	"github.com/edumesones/clientflow-pro/internal/genai"
	"github.com/edumesones/clientflow-pro/internal/messaging"
	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/scheduler"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ClientFlow state data
	DefaultStateDir = "/var/lib/clientflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "clientflow.db"

	// Default agent schedules (5-field cron expressions)
	DefaultConfirmationSchedule = "0 * * * *"
	DefaultNurtureSchedule      = "0 */2 * * *"
	DefaultBriefSchedule        = "*/30 * * * *"
	DefaultGrowthSchedule       = "0 6 * * *"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("ClientFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ClientFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	OpenAIModel string

	ConfirmationSchedule string
	NurtureSchedule      string
	BriefSchedule        string
	GrowthSchedule       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	runOnce     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("CLIENTFLOW_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),

		ConfirmationSchedule: util.EnvOrDefault("CONFIRMATION_SCHEDULE", DefaultConfirmationSchedule),
		NurtureSchedule:      util.EnvOrDefault("NURTURE_SCHEDULE", DefaultNurtureSchedule),
		BriefSchedule:        util.EnvOrDefault("BRIEF_SCHEDULE", DefaultBriefSchedule),
		GrowthSchedule:       util.EnvOrDefault("GROWTH_SCHEDULE", DefaultGrowthSchedule),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CLIENTFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"CLIENTFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"schedules", []string{config.ConfirmationSchedule, config.NurtureSchedule, config.BriefSchedule, config.GrowthSchedule})

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "Directory for ClientFlow state data"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "Database DSN (SQLite path or Postgres URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI chat model"),
		runOnce:     flag.Bool("run-once", false, "Run every agent once and exit"),
	}
	flag.Parse()
	return flags
}

func run(config Config, flags Flags) error {
	st, err := openStore(*flags.stateDir, *flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	genOpts := []genai.Option{}
	if *flags.openaiKey != "" {
		genOpts = append(genOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genOpts = append(genOpts, genai.WithModel(*flags.openaiModel))
	}
	gen, err := genai.NewClient(genOpts...)
	if err != nil {
		return err
	}

	dispatcher := buildDispatcher()

	clock := agents.Clock(time.Now)
	confirmation := agents.NewConfirmationAgent(st, gen, dispatcher, clock, agents.DefaultConfirmationConfig())
	nurture := agents.NewNurtureAgent(st, gen, dispatcher, clock, agents.DefaultNurtureConfig())
	brief := agents.NewBriefAgent(st, gen, clock, agents.DefaultBriefConfig())
	content := agents.NewContentAgent(st, gen, clock, agents.DefaultContentConfig())
	review := agents.NewReviewAgent(st, gen, dispatcher, clock, agents.DefaultReviewConfig())
	referral := agents.NewReferralAgent(st, gen, dispatcher, clock, agents.DefaultReferralConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched := scheduler.New(ctx)
	defer sched.Stop()

	all := []agents.Agent{confirmation, nurture, brief, content, review, referral}
	if *flags.runOnce {
		for _, agent := range all {
			sched.RunNow(agent)
		}
		return nil
	}

	registrations := []struct {
		expr  string
		agent agents.Agent
	}{
		{config.ConfirmationSchedule, confirmation},
		{config.NurtureSchedule, nurture},
		{config.BriefSchedule, brief},
		{config.GrowthSchedule, content},
		{config.GrowthSchedule, review},
		{config.GrowthSchedule, referral},
	}
	for _, r := range registrations {
		if err := sched.Register(r.expr, r.agent); err != nil {
			return err
		}
	}

	slog.Info("ClientFlow running", "agents", len(registrations))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	slog.Info("shutting down", "signal", received.String())
	cancel()
	return nil
}

// openStore opens the backing store, choosing the driver from the DSN shape.
func openStore(stateDir, dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildDispatcher wires a sender for every channel with complete
// configuration. Channels without one stay disabled and agents skip them.
// The *_ENABLED toggles default to on and turn a configured channel off
// without unsetting its credentials.
func buildDispatcher() *messaging.Dispatcher {
	var opts []messaging.Option

	if host := os.Getenv("SMTP_HOST"); host != "" && util.ParseBoolEnv("EMAIL_ENABLED", true) {
		port := 587
		if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
			port = p
		}
		email, err := messaging.NewSMTPSender(
			messaging.WithSMTPServer(host, port),
			messaging.WithSMTPAuth(os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD")),
			messaging.WithSMTPFrom(os.Getenv("SMTP_FROM_NAME"), os.Getenv("SMTP_FROM_EMAIL")),
		)
		if err != nil {
			slog.Error("email channel disabled", "error", err)
		} else {
			opts = append(opts, messaging.WithSender(models.ChannelEmail, email))
		}
	}

	if from := os.Getenv("TWILIO_SMS_FROM"); from != "" && util.ParseBoolEnv("SMS_ENABLED", true) {
		sms, err := messaging.NewSMSSender(messaging.WithFrom(from))
		if err != nil {
			slog.Error("sms channel disabled", "error", err)
		} else {
			opts = append(opts, messaging.WithSender(models.ChannelSMS, sms))
		}
	}

	if from := os.Getenv("TWILIO_WHATSAPP_FROM"); from != "" && util.ParseBoolEnv("WHATSAPP_ENABLED", true) {
		chat, err := messaging.NewChatSender(messaging.WithFrom(from))
		if err != nil {
			slog.Error("chat channel disabled", "error", err)
		} else {
			opts = append(opts, messaging.WithSender(models.ChannelChat, chat))
		}
	}

	return messaging.NewDispatcher(opts...)
}
