package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shieldvpn/backend"
	"shieldvpn/internal/controller"
	"shieldvpn/internal/presenter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	runServer  string
	runConnect bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "run the client and print the connection status",
		Long: `Runs the client until interrupted, printing a status line whenever the
connection changes. Commands are read from stdin, one per line:

  connect | disconnect | reconnect | clear
  select <server-id> | confirm | cancel
  quit`,
		Run: run,
	}
)

func run(cmd *cobra.Command, _ []string) {
	app := startApp()
	defer app.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.IsFirstLaunch() {
		fmt.Println("Welcome to ShieldVPN. Pick a server with `shieldvpn servers` and `select <id>`.")
	}

	sub := app.Controller.Subscribe()
	defer sub.Close()
	go printStatus(cmd.OutOrStdout(), sub)

	if runServer != "" {
		if err := app.Controller.SelectServer(ctx, runServer); err != nil {
			zap.S().Errorw("couldn't select server", "server", runServer, "error", err)
		}
	}

	if runConnect {
		if err := app.Controller.Connect(ctx); err != nil {
			zap.S().Errorw("couldn't connect", "error", err)
		}
	} else if _, err := app.AutoConnect(ctx); err != nil && !errors.Is(err, backend.ErrNoServerSelected) {
		zap.S().Errorw("auto-connect failed", "error", err)
	}

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			zap.S().Info("interrupted")
			disconnectForExit(app.Controller)
			return
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				disconnectForExit(app.Controller)
				return
			}
			if quit := runLine(ctx, app.Controller, line); quit {
				disconnectForExit(app.Controller)
				return
			}
		}
	}
}

func runLine(ctx context.Context, c *controller.Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch fields[0] {
	case "connect":
		err = c.Connect(ctx)
	case "disconnect":
		err = c.Disconnect(ctx)
	case "reconnect":
		err = c.Reconnect(ctx)
	case "clear":
		err = c.ClearError(ctx)
	case "select":
		if len(fields) != 2 {
			fmt.Println("usage: select <server-id>")
			return false
		}
		err = c.SelectServer(ctx, fields[1])
		if errors.Is(err, controller.ErrSwitchRequiresDisconnect) {
			fmt.Println("Switching servers will disconnect the current session. Type `confirm` or `cancel`.")
			return false
		}
	case "confirm":
		err = c.ConfirmServerSwitch(ctx)
	case "cancel":
		err = c.CancelServerSwitch(ctx)
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q\n", fields[0])
		return false
	}

	if err != nil {
		fmt.Printf("%s: %v\n", fields[0], err)
	}
	return false
}

// disconnectForExit brings an active tunnel down before the process exits.
func disconnectForExit(c *controller.Controller) {
	snap := c.Snapshot()
	if snap.Status.IsResting() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sub := c.Subscribe()
	defer sub.Close()

	if err := c.Disconnect(ctx); err != nil {
		zap.S().Warnw("disconnect on exit failed", "error", err)
		return
	}
	for {
		select {
		case snap, ok := <-sub.C():
			if !ok || snap.Status.IsResting() {
				return
			}
		case <-ctx.Done():
			zap.S().Warn("timed out waiting for the tunnel to go down")
			return
		}
	}
}

func printStatus(w io.Writer, sub *controller.Subscription) {
	var last string
	for snap := range sub.C() {
		if snap.IsLoading {
			continue
		}
		line := presenter.StatusLine(snap)
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func init() {
	runCmd.Flags().StringVar(&runServer, "server", "", "select this server before starting")
	runCmd.Flags().BoolVar(&runConnect, "connect", false, "connect right away regardless of the auto-connect setting")
	rootCmd.AddCommand(runCmd)
}
