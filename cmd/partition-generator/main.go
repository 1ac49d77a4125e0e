package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/NOAA-OWP/ngen-sub002/hydrofabric"
	"github.com/NOAA-OWP/ngen-sub002/network"
	"github.com/NOAA-OWP/ngen-sub002/partition"
	ngenlog "github.com/NOAA-OWP/ngen-sub002/pkg/log"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var errUsage = errors.New("usage")

var rootCmd = &cobra.Command{
	Use:   "partition-generator <catchment_data_path> <nexus_data_path> <partition_output_name> <number_of_partitions> [catchment_subset_ids] [nexus_subset_ids]",
	Short: "Split a hydrofabric into partitions for parallel runs",

	Args:          cobra.RangeArgs(4, 6),
	SilenceUsage:  true,
	SilenceErrors: true,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := parseArgs(args)
		if err != nil {
			return err
		}
		log, err := ngenlog.New(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		return run(cmd.Context(), log, cfg)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <partition_file>",
	Short: "Check a partition file for consistency",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := ngenlog.New(viper.GetString("log-level"))
		if err != nil {
			return err
		}
		return validate(log, args[0])
	},
}

func init() {
	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("log-level", "info", "the log level to run at")
	configFlags.String("link-key", "toid", "property naming the downstream feature")
	configFlags.String("alt-id-key", "id", "property holding an alternate feature id")
	configFlags.String("strategy", string(partition.StrategyDFS), "partitioning strategy: dfs, round-robin or one")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	rootCmd.AddCommand(validateCmd)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("ngen")
	viper.AutomaticEnv()

	_ = viper.BindPFlags(configFlags)
}

type config struct {
	catchmentPath string
	nexusPath     string
	output        string
	numPartitions int
	catchmentIDs  []string
	nexusIDs      []string
	linkKey       string
	altIDKey      string
	strategy      partition.Strategy
}

func parseArgs(args []string) (*config, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("%w: expected at least 4 arguments, got %d", errUsage, len(args))
	}

	cfg := &config{
		catchmentPath: args[0],
		nexusPath:     args[1],
		output:        args[2],
		linkKey:       viper.GetString("link-key"),
		altIDKey:      viper.GetString("alt-id-key"),
	}
	if cfg.output == "" {
		return nil, fmt.Errorf("%w: empty partition output name", errUsage)
	}

	n, err := strconv.Atoi(args[3])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: number of partitions must be a positive integer, got %q", partition.ErrInvalidPartitionCount, args[3])
	}
	cfg.numPartitions = n

	if len(args) > 4 {
		cfg.catchmentIDs = hydrofabric.SplitIDs(args[4])
	}
	if len(args) > 5 {
		cfg.nexusIDs = hydrofabric.SplitIDs(args[5])
	}

	cfg.strategy, err = partition.ParseStrategy(viper.GetString("strategy"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, log logr.Logger, cfg *config) error {
	var catchments, nexuses *hydrofabric.Collection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catchments, err = hydrofabric.Read(gctx, cfg.catchmentPath, hydrofabric.LayerDivides, cfg.catchmentIDs,
			hydrofabric.WithLogger(log.WithName("catchments")))
		return err
	})
	g.Go(func() error {
		var err error
		nexuses, err = hydrofabric.Read(gctx, cfg.nexusPath, hydrofabric.LayerNexus, cfg.nexusIDs,
			hydrofabric.WithLogger(log.WithName("nexus")))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Loaded hydrofabric", "catchments", catchments.Len(), "nexuses", nexuses.Len())

	parts, err := generate(log, cfg, catchments, nexuses)
	if err != nil {
		return err
	}

	if err := partition.WriteFile(cfg.output, parts); err != nil {
		return err
	}
	log.Info("Wrote partitions", "path", cfg.output, "partitions", len(parts), "strategy", cfg.strategy)
	return nil
}

func generate(log logr.Logger, cfg *config, catchments, nexuses *hydrofabric.Collection) ([]partition.Data, error) {
	switch cfg.strategy {
	case partition.StrategyOne:
		return []partition.Data{partition.One(catchments.Features(), cfg.linkKey)}, nil
	case partition.StrategyRoundRobin:
		return partition.RoundRobin(catchments.Features(), cfg.linkKey, cfg.numPartitions)
	}

	numCatchments := catchments.Len()

	fabric := hydrofabric.NewCollection(hydrofabric.WithLogger(log.WithName("fabric")))
	for _, c := range []*hydrofabric.Collection{catchments, nexuses} {
		c.UpdateIDs(cfg.altIDKey)
		if err := fabric.Merge(c); err != nil {
			return nil, err
		}
	}
	links := fabric.LinkFromProperty(cfg.linkKey)
	log.V(1).Info("Linked features", "links", links)

	net, err := network.New(fabric.Features(), network.WithLogger(log.WithName("network")))
	if err != nil {
		return nil, err
	}

	plan, err := partition.NewGenerator(net, partition.WithLogger(log.WithName("partition"))).Generate(cfg.numPartitions, numCatchments)
	if err != nil {
		return nil, err
	}
	return plan.Data(), nil
}

func validate(log logr.Logger, path string) error {
	parts, err := partition.ReadFile(path)
	if err != nil {
		return err
	}
	if err := partition.Validate(parts); err != nil {
		return err
	}
	log.Info("Partitions are consistent",
		"partitions", len(parts),
		"shared_nexuses", len(partition.SharedNexuses(parts)))
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "partition-generator:", err)
		os.Exit(1)
	}
}
