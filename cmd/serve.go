package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"swap-relay/pkg/metrics"
	"swap-relay/pkg/parser"
	"swap-relay/pkg/swap"
	"swap-relay/pkg/types"
)

const serveHelp = `Commands:
  /swap <token_address> <amount_eth> <max_fee_per_gas> [aggregator|router]
  /help`

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Read swap commands line by line from stdin",
	Long: `Run the relay as a line-oriented command interface. Every /swap line
is handled in its own goroutine; replies are written to stdout one per
line, prefixed with the line number of the command they answer. Lines
longer than 4096 bytes are rejected and skipped. Interrupting the process
stops reading at once and waits for swaps already in flight.

Examples:
  swap-relay serve
  swap-relay serve --metrics-addr :9090 < commands.txt`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (disabled when empty)")
}

// swapRunner is the part of swap.Executor used by the command loop
type swapRunner interface {
	Execute(ctx context.Context, args []string, mode string) types.Outcome
}

// replyWriter serializes replies from concurrent swaps
type replyWriter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (r *replyWriter) reply(line int, outcome types.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.json {
		data, _ := jsonLine(line, outcome)
		fmt.Fprintln(r.w, string(data))
		return
	}
	fmt.Fprintf(r.w, "[%d] %s\n", line, strings.ReplaceAll(swap.Render(outcome), "\n", " "))
}

func (r *replyWriter) text(line int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "[%d] %s\n", line, msg)
}

func runServe(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cmd, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	m := metrics.New()
	executor := swap.New(rt.cfg, rt.chain, m, rt.logger)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	servers, serverCtx := errgroup.WithContext(serverCtx)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		servers.Go(func() error {
			rt.logger.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		servers.Go(func() error {
			<-serverCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	out := &replyWriter{w: cmd.OutOrStdout(), json: jsonOutput}
	if err := serveLines(ctx, cmd.InOrStdin(), out, executor, rt.logger); err != nil {
		rt.logger.Error("command loop stopped", zap.Error(err))
	}

	stopServer()
	if err := servers.Wait(); err != nil {
		printError(err)
		rt.Close()
		os.Exit(1)
	}
}

// maxLineBytes bounds a single command line; longer lines are answered with
// errLineTooLong and skipped.
const maxLineBytes = 4096

var errLineTooLong = errors.New("line too long")

type inputLine struct {
	text    string
	tooLong bool
	err     error
}

// readLines feeds lines from in to lines until in is exhausted or ctx is
// done. A read error is delivered as the last line.
func readLines(ctx context.Context, in io.Reader, lines chan<- inputLine) {
	defer close(lines)

	send := func(l inputLine) bool {
		select {
		case lines <- l:
			return true
		case <-ctx.Done():
			return false
		}
	}

	r := bufio.NewReaderSize(in, maxLineBytes)
	for {
		chunk, err := r.ReadSlice('\n')
		line := inputLine{text: string(chunk)}
		if errors.Is(err, bufio.ErrBufferFull) {
			line = inputLine{tooLong: true}
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
		}

		if (line.tooLong || line.text != "") && !send(line) {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				send(inputLine{err: err})
			}
			return
		}
	}
}

// serveLines reads commands until EOF or cancellation and waits for every
// swap it started before returning. Cancellation is honored while waiting
// for input.
func serveLines(ctx context.Context, in io.Reader, out *replyWriter, runner swapRunner, logger *zap.Logger) error {
	var swaps errgroup.Group
	defer func() { _ = swaps.Wait() }()

	lines := make(chan inputLine)
	go readLines(ctx, in, lines)

	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			next inputLine
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok = <-lines:
		}
		if !ok {
			return nil
		}
		if next.err != nil {
			return next.err
		}

		lineNo++
		if next.tooLong {
			logger.Warn("command line too long", zap.Int("line", lineNo), zap.Int("maxBytes", maxLineBytes))
			out.text(lineNo, fmt.Sprintf("%v (max %d bytes)", errLineTooLong, maxLineBytes))
			continue
		}

		line := strings.TrimSpace(next.text)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		command, err := parser.ParseCommandLine(line)
		if err != nil {
			out.text(lineNo, err.Error())
			continue
		}

		switch command.Name {
		case "swap":
			n := lineNo
			swapArgs, mode := parser.SplitSwapArgs(command.Args)
			swaps.Go(func() error {
				out.reply(n, runner.Execute(ctx, swapArgs, mode))
				return nil
			})
		case "help", "start":
			out.text(lineNo, strings.ReplaceAll(serveHelp, "\n", " | "))
		default:
			logger.Debug("unknown command", zap.String("command", command.Name))
			out.text(lineNo, fmt.Sprintf("%v: %s", parser.ErrUnknownCommand, command.Name))
		}
	}
}
