package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"curie/audio"
	"curie/config"
	"curie/doctor"
	"curie/log"
	"curie/notify"
)

type options struct {
	configFile      string
	device          string
	logPath         string
	format          string
	segmentInterval time.Duration
	fake            bool
	headless        bool
	script          bool
}

type cli struct {
	opts options
	cfg  *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "curie",
		Short: "Symptom monitoring recorder",
		Long: `curie records the microphone in fixed-length segments while monitoring
is on, shows a clock while it runs and keeps a persistent notification up.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(c.cfg, c.opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.opts.configFile, "config", "", "config file (default: "+config.DefaultPath()+")")
	pf.StringVar(&c.opts.device, "device", "", "use named microphone device")
	pf.StringVar(&c.opts.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&c.opts.format, "format", "", "segment format: wav or flac")
	pf.DurationVar(&c.opts.segmentInterval, "segment-interval", 0, "length of each recorded segment (e.g. 30s)")
	pf.BoolVar(&c.opts.fake, "fake", false, "use a synthetic microphone and in-memory notifications")

	root.Flags().BoolVar(&c.opts.headless, "headless", false, "start monitoring immediately without the screen; stop on SIGINT/SIGTERM")
	root.Flags().BoolVar(&c.opts.script, "script", false, "headless: read commands from stdin")
	root.Flags().MarkHidden("script")

	root.AddCommand(
		c.doctorCmd(),
		c.devicesCmd(),
		c.segmentsCmd(),
		c.configCmd(),
		versionCmd(),
	)
	return root
}

// setup resolves the log directory and loads configuration for every
// command. Flags win over the config file and environment.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	logPath, err := log.ResolveDir(c.opts.logPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else {
		initCrashLog()
	}

	cfg, err := config.Load(c.opts.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.Device = c.opts.device
	}
	if flags.Changed("format") {
		cfg.Audio.Format = c.opts.format
	}
	if flags.Changed("segment-interval") {
		cfg.Monitor.SegmentInterval = c.opts.segmentInterval
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *cli) audioContext() (audio.Context, error) {
	if c.opts.fake {
		return fakeAudio(), nil
	}
	ctx, err := audio.NewContext()
	if err != nil {
		return nil, fmt.Errorf("initializing audio: %w", err)
	}
	return ctx, nil
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check microphone, segment writing, notifications and clipboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			actx, err := c.audioContext()
			if err != nil {
				return err
			}
			defer actx.Close()

			device, err := audio.FindDevice(actx, c.cfg.Audio.Device)
			if err != nil {
				return err
			}

			var notifier notify.Notifier
			if c.opts.fake {
				notifier = notify.NewFake()
			} else if n, err := notify.New("curie"); err == nil {
				notifier = n
				defer n.Close()
			}

			code := doctor.Run(doctor.Options{
				Ctx:         actx,
				Device:      device,
				Format:      c.cfg.Audio.Format,
				Notifier:    notifier,
				Interactive: !c.opts.fake && term.IsTerminal(int(os.Stdin.Fd())),
			})
			if code != 0 {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}

func (c *cli) devicesCmd() *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			actx, err := c.audioContext()
			if err != nil {
				return err
			}
			defer actx.Close()

			if pick {
				dev, err := audio.SelectDevice(actx)
				if err != nil {
					return err
				}
				if dev != nil {
					fmt.Printf("Selected: %s\nSet audio.device in %s or pass --device to use it.\n", dev.Name, config.DefaultPath())
				}
				return nil
			}

			devices, err := actx.Devices()
			if err != nil {
				return err
			}
			for _, d := range devices {
				mark := " "
				if d.Name == c.cfg.Audio.Device {
					mark = "*"
				}
				note := ""
				if audio.IsBluetooth(d.Name) {
					note = "  (bluetooth: lower audio quality)"
				}
				fmt.Printf("%s %s%s\n", mark, d.Name, note)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pick, "select", false, "pick a device interactively")
	return cmd
}

func (c *cli) segmentsCmd() *cobra.Command {
	var prune int
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "List recorded segments, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.Output.Directory
			if cmd.Flags().Changed("prune") {
				removed, err := audio.PruneSegments(dir, prune)
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d segment(s)\n", len(removed))
			}

			segs, err := audio.ListSegments(dir)
			if err != nil {
				return err
			}
			if len(segs) == 0 {
				fmt.Printf("No segments in %s\n", dir)
				return nil
			}
			for _, s := range segs {
				fmt.Printf("%s  %8.1f KB  %s\n", s.ModTime.Format("2006-01-02 15:04:05"), float64(s.Size)/1024, s.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&prune, "prune", 0, "delete all but the newest N segments first")
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(c.cfg)
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("curie %s\n", version)
		},
	}
}
