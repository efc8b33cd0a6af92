// Package main serves as the entry point for the parking pipeline batch
// application. It initializes the application configuration, sets up
// dependency injection via Fx, and orchestrates the batch job lifecycle.
package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	_ "embed"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/parking-pipeline/internal/app"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/surfin/pkg/batch/adapter/observability"
	"github.com/tigerroll/surfin/pkg/batch/adapter/webproxy"
	"github.com/tigerroll/surfin/pkg/batch/core/config"
	"github.com/tigerroll/surfin/pkg/batch/core/config/jsl"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

// embeddedConfig embeds the application's YAML configuration file (application.yaml).
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// applicationMigrationsFS embeds the directory containing application-specific database migration files.
//
//go:embed all:resources/migrations
var applicationMigrationsFS embed.FS

// embeddedJSL embeds the Job Specification Language (JSL) file that defines
// the flow and components of the parking batch job.
//
//go:embed resources/job.yaml
var embeddedJSL []byte

// main initializes the application context, handles OS signals for graceful
// shutdown, loads configurations, and starts the Fx application container.
// One process run executes the parkingJob flow once; scheduling is left to
// whatever launches the binary.
func main() {
	// Create a cancellable context for the application lifecycle.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create a channel for JobCompletionSignaler to notify the application externally about job completion.
	jobDoneChan := make(chan struct{})

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	// Load logging configuration early from application.yaml to ensure Fx logs reflect the desired settings.
	cfg := config.NewConfig()
	if err := yaml.Unmarshal(embeddedConfig, cfg); err != nil {
		logger.Errorf("Failed to unmarshal embedded application config for early logger setup: %v", err)
	} else {
		logger.SetLogFormat(cfg.Surfin.System.Logging.Format)
		logger.SetLogLevel(cfg.Surfin.System.Logging.Level)
	}

	// Define Fx options for adapter providers.
	adapterProviderOptions := []fx.Option{
		mysql.Module,
		postgres.Module,
		sqlite.Module,
		webproxy.Module,
		observability.Module,
	}

	// Run the application.
	app.RunApplication(ctx, envFilePath, config.EmbeddedConfig(embeddedConfig), jsl.JSLDefinitionBytes(embeddedJSL), applicationMigrationsFS, adapterProviderOptions, jobDoneChan)

	// Exit the process with exit code 0 after application execution completes.
	os.Exit(0)
}
