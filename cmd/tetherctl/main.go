package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"tetherd/internal/config"
	"tetherd/internal/process"
	"tetherd/internal/system"
	"tetherd/internal/tether"
	"tetherd/pkg/models"
	"tetherd/pkg/utils"
)

type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
)

type command struct {
	usage string
	run   func(ctx context.Context, core *tether.Core, args []string) (interface{}, error)
}

var commands = map[string]command{
	"leases":  {"leases", cmdLeases},
	"running": {"running <name>", cmdRunning},
	"lan":     {"lan [prefix]", cmdLan},
	"dns":     {"dns [update]", cmdDNS},
	"fileset": {"fileset", cmdFileset},
	"status":  {"status", cmdStatus},
	"root":    {"root <command>", cmdRoot},
}

func main() {
	configFile := flag.String("config", "tetherd.ini", "Path to the INI config file")
	output := flag.String("o", string(FormatYAML), "Output format: yaml or json")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.New(*configFile)
	utils.CheckFatal(err, "Failed to load configuration")
	cfg.ApplyLogLevel()

	core, err := newCore(cfg)
	utils.CheckFatal(err, "Failed to initialize")

	data, err := cmd.run(context.Background(), core, flag.Args()[1:])
	if err != nil {
		log.WithError(err).Fatal(flag.Arg(0) + " failed")
	}
	if err := write(os.Stdout, data, OutputFormat(*output)); err != nil {
		log.WithError(err).Fatal("Failed to write output")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func newCore(cfg *config.Config) (*tether.Core, error) {
	procFS, err := process.NewProcFS(cfg.ProcDir)
	if err != nil {
		return nil, err
	}
	sys := system.New(system.ExecRunner{}, system.Options{
		ProcDir: cfg.ProcDir,
		Su:      cfg.Su,
		GetProp: cfg.GetProp,
	})
	return tether.New(cfg, sys, process.NewCache(procFS), nil), nil
}

func errUsage(usage string) error {
	return fmt.Errorf("usage: %s", usage)
}

func write(w io.Writer, data interface{}, format OutputFormat) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func cmdLeases(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	clients, err := core.Leases()
	if err != nil {
		return nil, err
	}

	list := make([]models.Client, 0, len(clients))
	for _, client := range clients {
		list = append(list, client)
	}
	sort.Slice(list, func(i, j int) bool {
		return utils.IPToInt(list[i].IP) < utils.IPToInt(list[j].IP)
	})
	return list, nil
}

func cmdRunning(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, errUsage("running <name>")
	}
	running, err := core.IsProcessRunning(args[0])
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"name": args[0], "running": running}, nil
}

func cmdLan(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	switch len(args) {
	case 0:
		return map[string]string{"network": core.LanNetwork()}, nil
	case 1:
		subnet, err := core.WriteLan(args[0])
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"network":   subnet.String(),
			"gateway":   subnet.Gateway.String(),
			"dhcpRange": subnet.DHCPRange(),
		}, nil
	}
	return nil, errUsage("lan [prefix]")
}

func cmdDNS(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	if len(args) == 0 {
		return core.DNSServers(ctx), nil
	}
	if len(args) != 1 || args[0] != "update" {
		return nil, errUsage("dns [update]")
	}
	changed, err := core.UpdateDNS(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"servers": core.DNSServers(ctx), "changed": changed}, nil
}

func cmdFileset(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	return map[string]bool{"outdated": core.FilesetOutdated()}, nil
}

func cmdStatus(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	return core.Status(), nil
}

func cmdRoot(ctx context.Context, core *tether.Core, args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, errUsage("root <command>")
	}
	command := strings.Join(args, " ")
	if err := core.RootCommand(ctx, command); err != nil {
		return nil, err
	}
	return map[string]interface{}{"command": command, "ok": true}, nil
}
