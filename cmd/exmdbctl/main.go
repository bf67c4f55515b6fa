package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/exmdbctl/internal/auth"
	"github.com/danmuck/exmdbctl/internal/config"
	"github.com/danmuck/exmdbctl/internal/exmdb"
	"github.com/danmuck/exmdbctl/internal/exmdb/requests"
	"github.com/danmuck/exmdbctl/internal/logging"
	"github.com/danmuck/exmdbctl/internal/probe"
	"github.com/rs/zerolog/log"
)

const usage = `usage: exmdbctl <command> [flags]

commands:
  ping      -config PATH [-store DIR]...   ping stores once
  proptags  -config PATH -store DIR        list a store's property tags
  unload    -config PATH -store DIR        ask the server to unload a store
  probe     -config PATH                   supervise stores and serve the admin api
  config    [-output PATH] [-force] [-validate PATH]
`

var errUsage = errors.New("invalid usage")

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "exmdbctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ping":
		return runPing(ctx, rest, out)
	case "proptags":
		return runPropTags(ctx, rest, out)
	case "unload":
		return runUnload(ctx, rest, out)
	case "probe":
		return runProbe(ctx, rest)
	case "config":
		return runConfig(rest, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runPing(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("ping")
	path := fs.String("config", "exmdbctl.toml", "config path")
	var stores stringList
	fs.Var(&stores, "store", "store directory (repeatable, defaults to config stores)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := loadCLIConfig(*path)
	if err != nil {
		return err
	}
	targets := normalizeList(stores)
	if len(targets) == 0 {
		targets = cfg.Probe.Stores
	}
	if len(targets) == 0 {
		return probe.ErrNoStores
	}

	down := 0
	err = exmdb.With(ctx, cfg.Probe.Transport, cfg.Probe.Endpoint, func(c *exmdb.Client) error {
		for _, dir := range targets {
			_, err := exmdb.Send(ctx, c, requests.PingStore(dir))
			if code, ok := exmdb.StatusOf(err); ok {
				down++
				fmt.Fprintf(out, "%s\tdown\t%s\n", dir, code)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\tup\n", dir)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if down > 0 {
		return fmt.Errorf("%d of %d stores down", down, len(targets))
	}
	return nil
}

func singleStore(name string, args []string) (string, string, error) {
	fs := newFlagSet(name)
	path := fs.String("config", "exmdbctl.toml", "config path")
	store := fs.String("store", "", "store directory")
	if err := fs.Parse(args); err != nil {
		return "", "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*store) == "" {
		return "", "", fmt.Errorf("%w: -store is required", errUsage)
	}
	return *path, strings.TrimSpace(*store), nil
}

func runPropTags(ctx context.Context, args []string, out io.Writer) error {
	path, store, err := singleStore("proptags", args)
	if err != nil {
		return err
	}
	cfg, err := loadCLIConfig(path)
	if err != nil {
		return err
	}
	return exmdb.With(ctx, cfg.Probe.Transport, cfg.Probe.Endpoint, func(c *exmdb.Client) error {
		resp, err := exmdb.Send(ctx, c, requests.GetStoreAllPropTagsRequest{Dir: store})
		if err != nil {
			return err
		}
		for _, tag := range resp.Tags {
			fmt.Fprintf(out, "0x%08x\n", tag)
		}
		return nil
	})
}

func runUnload(ctx context.Context, args []string, out io.Writer) error {
	path, store, err := singleStore("unload", args)
	if err != nil {
		return err
	}
	cfg, err := loadCLIConfig(path)
	if err != nil {
		return err
	}
	return exmdb.With(ctx, cfg.Probe.Transport, cfg.Probe.Endpoint, func(c *exmdb.Client) error {
		if _, err := exmdb.Send(ctx, c, requests.UnloadStore(store)); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\tunloaded\n", store)
		return nil
	})
}

func runProbe(ctx context.Context, args []string) error {
	fs := newFlagSet("probe")
	path := fs.String("config", "exmdbctl.toml", "config path")
	id := fs.String("id", "exmdbctl", "probe id used in metrics labels")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := loadCLIConfig(*path)
	if err != nil {
		return err
	}
	prober, err := probe.New(cfg.Probe)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if cfg.AdminAddr != "" {
		opts := probe.AdminOptions{CorsOrigins: cfg.CorsOrigins}
		if len(cfg.AdminTokens) > 0 {
			opts.Auth = auth.Tokens(cfg.AdminTokens)
		}
		admin := probe.NewAdmin(*id, prober, opts)
		go func() {
			err := admin.Serve(ctx, cfg.AdminAddr)
			if err != nil {
				log.Error().Err(err).Str("addr", cfg.AdminAddr).Msg("probe admin failed")
				cancel()
			}
			adminErr <- err
		}()
	} else {
		close(adminErr)
	}

	log.Info().
		Str("host", cfg.Probe.Endpoint.Host).
		Int("stores", len(cfg.Probe.Stores)).
		Dur("interval", cfg.Probe.Interval).
		Msg("probe starting")

	runErr := prober.Run(ctx)
	cancel()
	if err := <-adminErr; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runConfig(args []string, out io.Writer) error {
	fs := newFlagSet("config")
	output := fs.String("output", "exmdbctl.toml", "output path for config template")
	force := fs.Bool("force", false, "overwrite existing config file")
	validate := fs.String("validate", "", "validate an existing config file instead of writing one")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *validate != "" {
		if _, err := config.Load(*validate); err != nil {
			return err
		}
		fmt.Fprintf(out, "validated config at %s\n", *validate)
		return nil
	}
	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote config template to %s\n", *output)
	return nil
}
