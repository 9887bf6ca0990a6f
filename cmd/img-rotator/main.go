package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/fsutil"
	"github.com/Sriram-PR/img-rotator/pkg/job"
	applog "github.com/Sriram-PR/img-rotator/pkg/log"
	"github.com/Sriram-PR/img-rotator/pkg/storage"
)

const version = "0.3.0"

type options struct {
	configPath   string
	logLevel     string
	quota        int
	sitesFile    string
	forceRefetch bool
	dumpOut      string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "img-rotator",
		Short:         "Download images from a list of sites and store them rotated 180 degrees",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to YAML config file (optional unless set explicitly)")
	root.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "info", "Log level (trace, debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, rotate and store images up to the quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doRun(cmd, opts)
		},
	}
	runCmd.Flags().IntVar(&opts.quota, "quota", 0, "Number of images to process (overrides config)")
	runCmd.Flags().StringVar(&opts.sitesFile, "sites", "", "Site list file, one URL per line (overrides config)")
	runCmd.Flags().BoolVar(&opts.forceRefetch, "force-refetch", false, "Ignore cached originals and download again")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and site list without fetching anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doValidate(cmd, opts)
		},
	}
	validateCmd.Flags().StringVar(&opts.sitesFile, "sites", "", "Site list file (overrides config)")

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the durable status table as a SQL script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doDump(cmd, opts)
		},
	}
	dumpCmd.Flags().StringVarP(&opts.dumpOut, "out", "o", "", "Output file (default stdout)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "img-rotator %s\n", version)
		},
	}

	root.AddCommand(runCmd, validateCmd, dumpCmd, versionCmd)
	return root
}

// loadConfig reads the config file, applies CLI overrides and validates.
// The default config path may be absent; an explicitly passed one may not.
func loadConfig(cmd *cobra.Command, opts *options, log *logrus.Logger) (*config.AppConfig, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(opts.configPath, optional)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Lookup("quota") != nil && flags.Changed("quota") {
		cfg.Quota = opts.quota
	}
	if flags.Lookup("sites") != nil && flags.Changed("sites") {
		cfg.SitesFile = opts.sitesFile
	}
	if flags.Lookup("force-refetch") != nil && flags.Changed("force-refetch") {
		cfg.ForceRefetch = opts.forceRefetch
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warnf("Config: %s", w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Quota:%d, Sites:%s, ForceRefetch:%v, MaxInFlight:%d",
		cfg.Quota, cfg.SitesFile, cfg.ForceRefetch, cfg.EffectiveMaxInFlight())
	log.Infof("Config: MaxReqs:%d, MaxReqPerHost:%d, DelayPerHost:%v, Timeout:%v",
		cfg.MaxRequests, cfg.MaxRequestsPerHost, cfg.DelayPerHost, cfg.RequestTimeout)
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		cfg.MaxRetries, cfg.InitialRetryDelay, cfg.MaxRetryDelay)
	log.Infof("Config Dirs: Original:%s, Rotated:%s, Log:%s, Store:%s",
		cfg.OriginalDir, cfg.RotatedDir, cfg.LogDir, cfg.Store.Driver)
}

func doRun(cmd *cobra.Command, opts *options) error {
	startedAt := time.Now()
	logger := applog.NewLogger(opts.logLevel, cmd.OutOrStdout())

	cfg, err := loadConfig(cmd, opts, logger)
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		return err
	}

	runLog, err := applog.AttachRunFile(logger, cfg.LogDir, startedAt)
	if err != nil {
		logger.Warnf("Logging to stdout only: %v", err)
	} else {
		defer runLog.Close()
		logger.Infof("Logging to %s", runLog.Path)
	}
	logger.Infof("img-rotator %s starting", version)
	logAppConfig(cfg, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First signal cancels the run, in-flight images finish with their own status.
	// A second signal exits immediately.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case sig := <-sigChan:
			logger.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	res, err := job.New(cfg, logrus.NewEntry(logger)).Run(ctx)
	if err != nil {
		logger.Errorf("Run failed: %v", err)
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Warn("Run cancelled gracefully.")
	}
	if !res.QuotaReached() {
		logger.Warnf("Sites exhausted before the quota: %d of %d processed", res.Snapshot.Total.Processed, cfg.Quota)
	}
	return nil
}

func doValidate(cmd *cobra.Command, opts *options) error {
	logger := applog.NewLogger(opts.logLevel, cmd.ErrOrStderr())
	cfg, err := loadConfig(cmd, opts, logger)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration invalid: %v\n", err)
		return err
	}
	sites, err := fsutil.ReadSiteList(cfg.SitesFile)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Site list invalid: %v\n", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK: quota %d, %d sites in %s, store %s\n",
		cfg.Quota, len(sites), cfg.SitesFile, cfg.Store.Driver)
	return nil
}

func doDump(cmd *cobra.Command, opts *options) error {
	logger := applog.NewLogger(opts.logLevel, cmd.ErrOrStderr())
	cfg, err := loadConfig(cmd, opts, logger)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.StoreDriverNone {
		err := errors.New("no durable store configured (store.driver is none)")
		logger.Error(err)
		return err
	}

	store, err := storage.Open(cmd.Context(), cfg.Store, "", logrus.NewEntry(logger).WithField("component", "store"))
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if opts.dumpOut != "" {
		f, err := os.Create(opts.dumpOut)
		if err != nil {
			return fmt.Errorf("creating dump file '%s': %w", opts.dumpOut, err)
		}
		defer f.Close()
		out = f
	}
	return storage.Dump(cmd.Context(), out, store)
}
