// Command mssql2sqlite converts a SQL Server database into a SQLite file,
// driven by a TOML configuration file.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/w8tcha/mssql2sqlite/internal/config"
	"github.com/w8tcha/mssql2sqlite/internal/engine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mssql2sqlite [config.toml]",
	Short: "SQL Server to SQLite database conversion tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConvert,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to conversion TOML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: mssql2sqlite <config.toml> or mssql2sqlite --config <config.toml>")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log.Printf("mssql2sqlite — SQL Server → SQLite conversion")
	log.Printf("config: dest=%s create_triggers=%t create_views=%t schema_only=%t",
		cfg.Dest.Path, cfg.CreateTriggers, cfg.CreateViews, cfg.SchemaOnly)

	start := time.Now()
	done := make(chan error, 1)

	opts := engine.ConvertOptions{
		SourceConnString: cfg.Source.ConnString,
		DestPath:         cfg.Dest.Path,
		Password:         cfg.Dest.Password,
		CreateTriggers:   cfg.CreateTriggers,
		CreateViews:      cfg.CreateViews,
		SchemaOnly:       cfg.SchemaOnly,
	}

	coordinator, err := engine.Convert(opts, &consoleProgress{done: done}, nil, nil)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			log.Printf("cancellation requested, finishing the in-flight batch...")
			coordinator.Cancel()
		}
	}()
	defer signal.Stop(sigCh)

	if err := <-done; err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	log.Printf("conversion completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// consoleProgress logs every progress event to the standard logger and
// signals done on the channel exactly once, when the run finishes.
type consoleProgress struct {
	done chan error
}

func (p *consoleProgress) OnProgress(done, success bool, percent int, message string) {
	log.Printf("[%3d%%] %s", percent, message)
	if done {
		if !success {
			p.done <- errors.New(message)
			return
		}
		p.done <- nil
	}
}
