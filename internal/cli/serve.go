package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/ubi/internal/engine"
	"github.com/roach88/ubi/internal/ir"
	"github.com/roach88/ubi/internal/ledger"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr string
}

// ServeRequest is one line of serve input.
type ServeRequest struct {
	Action string      `json:"action"`
	Caller string      `json:"caller"`
	Args   ir.IRObject `json:"args"`

	// At is an RFC 3339 block time. Empty means the time the line was read.
	At   string `json:"at,omitempty"`
	Flow string `json:"flow,omitempty"`
}

// ServeResponse is one line of serve output.
type ServeResponse struct {
	Line   int           `json:"line"`
	Result *InvokeResult `json:"result,omitempty"`
	Error  *CLIError     `json:"error,omitempty"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Execute actions read from stdin",
		Long: `Run the engine and execute one action per JSON line read from stdin,
writing one JSON result per line to stdout. Stops at end of input or on
SIGINT/SIGTERM.

Input lines look like:
  {"action":"issue","caller":"alice","args":{"issuer":"alice"}}

Examples:
  ubi serve --db ./ubi.db < actions.jsonl
  ubi serve --db ./ubi.db --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger := opts.logger()
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	reg := prometheus.NewRegistry()
	st, eng, err := opts.openEngine(ctx, nil,
		engine.WithRegisterer(reg),
		engine.WithNotifier(receiptLogger{logger: logger}),
	)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", opts.MetricsAddr)
	}

	var wg sync.WaitGroup
	runErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr <- eng.Run(ctx)
	}()

	failed, readErr := serveLines(ctx, eng, cmd.InOrStdin(), cmd.OutOrStdout())
	eng.Stop()
	wg.Wait()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read input", readErr)
	}
	logger.Info("engine stopped gracefully", "seq", eng.Seq())
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d action(s) rejected or refused", failed))
	}
	return nil
}

// serveLines submits each input line and writes its response. It returns
// the number of lines that did not commit.
func serveLines(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	failed, line := 0, 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		resp := ServeResponse{Line: line}

		req, err := parseServeRequest(scanner.Bytes())
		if err == nil {
			var res engine.Result
			res, err = eng.Submit(ctx, req)
			if err == nil {
				r := invokeResult(res)
				resp.Result = &r
				if !res.Completion.OK() {
					failed++
				}
			}
		}
		if err != nil {
			failed++
			resp.Error = serveError(err)
		}
		if err := enc.Encode(resp); err != nil {
			return failed, err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return failed, scanner.Err()
}

func parseServeRequest(data []byte) (engine.Request, error) {
	var sr ServeRequest
	if err := json.Unmarshal(data, &sr); err != nil {
		return engine.Request{}, fmt.Errorf("invalid request: %w", err)
	}
	at := time.Now()
	if sr.At != "" {
		var err error
		if at, err = time.Parse(time.RFC3339Nano, sr.At); err != nil {
			return engine.Request{}, fmt.Errorf("invalid at: %w", err)
		}
	}
	if sr.Args == nil {
		sr.Args = ir.IRObject{}
	}
	return engine.Request{
		Action:    sr.Action,
		Args:      sr.Args,
		Caller:    sr.Caller,
		Time:      ledger.FromTime(at),
		FlowToken: sr.Flow,
	}, nil
}

func serveError(err error) *CLIError {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		return &CLIError{Code: string(rt.Code), Message: rt.Message, Details: rt.Details}
	}
	return &CLIError{Code: "BAD_REQUEST", Message: err.Error()}
}

// receiptLogger logs the receipts a committed transfer sends.
type receiptLogger struct {
	logger *slog.Logger
}

func (r receiptLogger) Notify(recipient ledger.Name) {
	r.logger.Debug("receipt delivered", "recipient", recipient)
}
