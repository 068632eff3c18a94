// wingmon discovers a console, connects and prints every parameter change
// as it arrives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dannydulai/libwing/wing"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var host string
	var debug bool

	cmd := &cobra.Command{
		Use:   "wingmon",
		Short: "Monitor parameter changes on a WING console",
		Long: `wingmon connects to a WING console and prints every node data event it
receives. Without --host the first console discovered on the local network
is used.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(host, debug)
		},
	}

	cmd.Flags().StringVarP(&host, "host", "t", "", "console address; discovered when empty")
	cmd.Flags().BoolVar(&debug, "debug", false, "log protocol diagnostics")
	return cmd
}

func run(host string, debug bool) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	hooks := wing.DefaultLoggingHooks
	if debug {
		hooks = wing.DiagnosticLoggingHooks
	}

	if host == "" {
		devices, err := wing.Scan(true)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return wing.ErrNoDeviceFound
		}
		dev := devices[0]
		logger.Info("discovered console",
			zap.String("name", dev.Name),
			zap.String("ip", dev.IP),
			zap.String("model", dev.Model),
			zap.String("firmware", dev.Firmware))
		host = dev.IP
	}

	ses, err := wing.Connect(host, wing.LoggingHooks(hooks))
	if err != nil {
		return err
	}
	defer ses.Close()
	logger.Info("connected", zap.String("host", host))

	for {
		ev, err := ses.Read()
		if err != nil {
			return err
		}
		data, ok := ev.(wing.NodeDataEvent)
		if !ok {
			continue
		}
		fmt.Printf("%d %s = %s\n", data.NodeID, displayName(data.NodeID), data.Data)
	}
}

func displayName(id wing.NodeID) string {
	if names := wing.IDToNames(id); len(names) > 0 {
		return names[0]
	}
	return fmt.Sprintf("<unknown:%d>", id)
}
