package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/ui"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
	// pingInterval separates requests; tests shorten it.
	pingInterval = time.Second
)

// pingCmd measures round trips to the server
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the server answers",
	Long: `Request the server version once a second and print the round-trip time.

Runs until Ctrl+C, --timeout seconds have passed, or --count requests were sent.
Exits non-zero when no request succeeded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return pingCommand(ctx, cmd.OutOrStdout(), pingTimeout, pingCount)
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingTimeout, "timeout", "t", 0, "stop after n seconds (0 runs until interrupted)")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 0, "stop after n requests (0 is unlimited)")
}

// PingReply is one request's outcome.
type PingReply struct {
	Seq       int     `json:"seq"`
	Status    int     `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// PingResult is the --json payload of ping.
type PingResult struct {
	URL      string      `json:"url"`
	IP       string      `json:"ip"`
	Sent     int         `json:"sent"`
	Received int         `json:"received"`
	Replies  []PingReply `json:"replies"`
}

func pingCommand(ctx context.Context, stdout io.Writer, timeoutSec, count int) error {
	if timeoutSec < 0 || count < 0 {
		return errors.New(errors.ErrInput, "--timeout and --count can't be negative", "")
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	result := PingResult{URL: a.client.URL(), IP: a.client.ResolveIP(ctx), Replies: []PingReply{}}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for seq := 0; count == 0 || seq < count; seq++ {
		if seq > 0 {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		reply := pingOnce(ctx, a.client, seq)
		// A request cut short by Ctrl+C or --timeout isn't a lost reply.
		if reply.Error != "" && ctx.Err() != nil {
			break
		}
		result.Sent++
		if reply.Error == "" {
			result.Received++
		}
		result.Replies = append(result.Replies, reply)
		if !machineMode {
			printPingReply(stdout, result, reply)
		}
	}

	var failure error
	if result.Received == 0 {
		failure = errors.New(errors.ErrAPI,
			fmt.Sprintf("No reply from %s", result.URL),
			"Check server.url and your network connection.")
	}

	if machineMode {
		if failure != nil {
			_ = WriteJSONFailure(stdout, result, failure)
			return &exitError{Code: 1}
		}
		return WriteJSONSuccess(stdout, result)
	}

	fmt.Fprintf(stdout, "\n%d sent, %d received\n", result.Sent, result.Received)
	return failure
}

func pingOnce(ctx context.Context, c *simvue.Client, seq int) PingReply {
	start := time.Now()
	_, err := c.Version(ctx)
	reply := PingReply{
		Seq:       seq,
		Status:    http.StatusOK,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		reply.Status = 0
		var apiErr *simvue.APIError
		if stderrors.As(err, &apiErr) {
			reply.Status = apiErr.StatusCode
		}
		reply.Error = err.Error()
	}
	return reply
}

func printPingReply(w io.Writer, r PingResult, reply PingReply) {
	prefix := fmt.Sprintf("Reply from %s (%s): ", r.URL, r.IP)
	if reply.Error != "" {
		fmt.Fprintln(w, prefix+ui.RunStatusStyle(simvue.StatusFailed).Render(fmt.Sprintf("status_code=%d, error", reply.Status)))
		return
	}
	fmt.Fprintf(w, "%sstatus_code=%d, time=%.2fms\n", prefix, reply.Status, reply.LatencyMS)
}
