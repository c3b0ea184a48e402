package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/kriansa/ldm/internal/config"
	"github.com/kriansa/ldm/internal/control"
	"github.com/kriansa/ldm/internal/engine"
	"github.com/kriansa/ldm/internal/hook"
	"github.com/kriansa/ldm/internal/lifecycle"
	"github.com/kriansa/ldm/internal/log"
	"github.com/kriansa/ldm/internal/mount"
	"github.com/kriansa/ldm/internal/mtab"
	"github.com/kriansa/ldm/internal/pidfile"
	"github.com/kriansa/ldm/internal/registry"
	"github.com/kriansa/ldm/internal/sysfs"
	"github.com/kriansa/ldm/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:  "ldm",
		Usage: "auto-mount and auto-unmount removable block devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "daemon",
				Aliases: []string{"d"},
				Usage:   "run as the device lifecycle daemon",
			},
			&cli.StringFlag{
				Name:    "remove",
				Aliases: []string{"r"},
				Usage:   "client mode: request removal of the device or mountpoint at <path>",
			},
			&cli.IntFlag{
				Name:    "uid",
				Aliases: []string{"u"},
				Usage:   "unprivileged uid hook children and mounted filesystems are owned by",
			},
			&cli.IntFlag{
				Name:    "gid",
				Aliases: []string{"g"},
				Usage:   "unprivileged gid hook children and mounted filesystems are owned by",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file path",
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:    "mount-root",
				Aliases: []string{"m"},
				Usage:   "base directory for synthesized mountpoints",
			},
			&cli.StringFlag{
				Name:  "pid-file",
				Usage: "singleton-guard pid file path",
			},
			&cli.StringFlag{
				Name:  "control-pipe",
				Usage: "out-of-band control channel path",
			},
			&cli.StringFlag{
				Name:  "admin-table",
				Usage: "administrator-maintained mount table path",
			},
			&cli.StringFlag{
				Name:  "kernel-table",
				Usage: "live kernel mount table path",
			},
			&cli.StringFlag{
				Name:  "hook",
				Usage: "path to the mount/unmount hook helper",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "print version information",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Println(version.String())
		return nil
	}

	if path := cmd.String("remove"); path != "" {
		return runClient(cmd, path)
	}

	if !cmd.Bool("daemon") {
		fmt.Fprintln(os.Stderr, "usage: ldm -d -u <uid> -g <gid> [options]   (run as daemon)")
		fmt.Fprintln(os.Stderr, "       ldm -r <path>                       (request removal of a device)")
		return nil
	}

	return runDaemon(cmd)
}

// runClient implements the -r client mode (spec.md §4.8, §6): open the
// control pipe, write the remove command and path, exit.
func runClient(cmd *cli.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(cfg.ControlPipe, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open control pipe: %w", err)
	}
	defer f.Close()

	msg := append([]byte{control.CmdRemove}, []byte(path)...)
	if _, err := f.Write(msg); err != nil {
		return fmt.Errorf("write control pipe: %w", err)
	}
	return nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Merge(
		cmd.String("mount-root"),
		cmd.String("pid-file"),
		cmd.String("control-pipe"),
		cmd.String("admin-table"),
		cmd.String("kernel-table"),
		cmd.String("hook"),
		int(cmd.Int("uid")),
		int(cmd.Int("gid")),
		cmd.IsSet("uid"),
		cmd.IsSet("gid"),
	)
	cfg.ApplyDefaults()
	return cfg, nil
}

// runDaemon implements -d: acquire the singleton guard, open every
// event source, enumerate already-attached devices, then run the event
// loop until a termination signal arrives (spec.md §5).
func runDaemon(cmd *cli.Command) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("ldm must run as the superuser")
	}

	log.Setup(cmd.Bool("verbose"))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info("starting ldm",
		"mount_root", cfg.MountRoot,
		"uid", cfg.UID,
		"gid", cfg.GID,
		"admin_table", cfg.AdminTable,
		"kernel_table", cfg.KernelTable,
	)

	guard, err := pidfile.Acquire(cfg.PidFile)
	if err != nil {
		return fmt.Errorf("singleton guard: %w", err)
	}
	defer func() {
		if err := guard.Release(); err != nil {
			log.Warn("failed to remove pid file", "path", cfg.PidFile, "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.MountRoot, 0755); err != nil {
		return fmt.Errorf("create mount root: %w", err)
	}

	tables := mtab.NewCache(cfg.AdminTable, cfg.KernelTable)
	if err := tables.Reload(mtab.Admin); err != nil {
		return fmt.Errorf("load admin table: %w", err)
	}
	if err := tables.Reload(mtab.Kernel); err != nil {
		return fmt.Errorf("load kernel table: %w", err)
	}

	reg := registry.New(cfg.RegistryCapacity)
	hookInvoker := hook.New(cfg.HookPath, cfg.UID, cfg.GID, cfg.HookTimeout, nil)
	lc := lifecycle.New(reg, tables, mount.NewUnixMounter(), hookInvoker, cfg.MountRoot, cfg.UID, cfg.GID)

	eng, err := engine.Open(lc, tables, cfg.AdminTable, cfg.ControlPipe)
	if err != nil {
		return fmt.Errorf("open event sources: %w", err)
	}

	if handles, err := sysfs.Enumerate(); err != nil {
		log.Warn("startup enumeration failed", "error", err)
	} else {
		eng.Bootstrap(handles)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-sigs
		log.Info("received signal, shutting down", "signal", sig)
		eng.Stop()

		// A second termination signal means the operator has given up
		// waiting on the shutdown sweep (spec.md §5: "no signal is
		// forwarded to [hook children]" leaves a stuck unmount with no
		// other way to abort). Skip the graceful path entirely rather
		// than let ShutdownAll hang on it.
		sig = <-sigs
		log.Warn("received second signal, forcing immediate exit", "signal", sig)
		if err := guard.Release(); err != nil {
			log.Warn("failed to remove pid file", "path", cfg.PidFile, "error", err)
		}
		os.Exit(1)
	}()

	runErr := eng.Run()
	eng.Shutdown()

	if runErr != nil {
		return fmt.Errorf("event loop: %w", runErr)
	}
	return nil
}
