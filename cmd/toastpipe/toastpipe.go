package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/davecgh/go-spew/spew"
	"github.com/mitchellh/colorstring"
	"gopkg.in/yaml.v3"

	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/pkg/builder"
	"github.com/toastate/toastpipe/pkg/config"
	"github.com/toastate/toastpipe/pkg/server"
)

var CLI struct {
	Run    CommandRun    `cmd:"" aliases:"r" help:"Run build tasks and their dependencies."`
	Tasks  CommandTasks  `cmd:"" aliases:"t" help:"List the available tasks."`
	Serve  CommandServe  `cmd:"" aliases:"s" help:"Run a live dev server."`
	Config CommandConfig `cmd:"" help:"Print the resolved configuration."`

	ConfigFile string `short:"c" help:"configuration file path (optional)"`
}

type CommandRun struct {
	Tasks []string `arg:"" optional:"" help:"Tasks to run (default: dist)."`

	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

type CommandTasks struct{}

type CommandServe struct {
	Build bool `negatable:"" default:"true" help:"Build and watch before serving."`

	Port int `short:"p" help:"Listener port"`

	Verbose int `short:"v" help:"Print verbose output." type:"counter"`
}

type CommandConfig struct {
	YAML bool `help:"Print as YAML instead of a Go dump."`
}

// runContext is bound into every command's Run method.
type runContext struct {
	ctx context.Context
	cfg *config.Configuration
}

func main() {
	kctx := kong.Parse(&CLI, kong.UsageOnError())

	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		tlogger.Error("msg", "Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = kctx.Run(&runContext{ctx: ctx, cfg: cfg})
	stop()
	if err != nil {
		tlogger.Error("msg", "Command failed", "err", err)
		os.Exit(1)
	}
}

func (r *CommandRun) Run(rc *runContext) error {
	tlogger.ApplyVerbosity(r.Verbose)

	b, err := builder.NewBuilder(rc.cfg)
	if err != nil {
		return err
	}
	return b.Build(rc.ctx, r.Tasks...)
}

func (r *CommandTasks) Run(rc *runContext) error {
	b, err := builder.NewBuilder(rc.cfg)
	if err != nil {
		return err
	}
	list, err := b.Tasks()
	if err != nil {
		return err
	}

	for _, t := range list {
		colorstring.Printf("[blue][bold]%s[reset] %s\n", t.Name, t.Desc)
		if len(t.Deps) > 0 {
			colorstring.Printf("[green]  deps:[reset] %s\n", strings.Join(t.Deps, ", "))
		}
		for _, step := range t.Steps {
			colorstring.Printf("[green]  ->[reset] %s\n", step)
		}
	}
	return nil
}

func (r *CommandServe) Run(rc *runContext) error {
	tlogger.ApplyVerbosity(r.Verbose)

	b, err := builder.NewBuilder(rc.cfg)
	if err != nil {
		return err
	}
	return server.NewServer(b, r.Port).Start(rc.ctx, r.Build)
}

func (r *CommandConfig) Run(rc *runContext) error {
	if r.YAML {
		out, err := yaml.Marshal(rc.cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}
	fmt.Print(spew.Sdump(rc.cfg))
	return nil
}
