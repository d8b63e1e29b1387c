package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/orchestrator"
	"github.com/xaenox/emotrack/internal/sink"
	"github.com/xaenox/emotrack/pkg/config"
)

var (
	replayInput   string
	replayVerbose bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Feed a JSONL message log through the pipeline",
	Long: `Feed a JSONL file of messages through the pipeline in order and print one
analysis per line. Each input line looks like:

  {"user_id": "u1", "text": "Kal exam tha", "timestamp": "2024-05-01T10:00:00Z", "writing_time": 4.2}

timestamp and writing_time are optional. Profiles are saved to the configured
storage when the replay ends.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "-", "JSONL file to replay (- for stdin)")
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "Log every analysis")
}

// replayMessage is one line of a replay file.
type replayMessage struct {
	UserID      string    `json:"user_id"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	WritingTime float64   `json:"writing_time"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := buildStorage(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var in io.Reader = cmd.InOrStdin()
	if replayInput != "-" {
		f, err := os.Open(replayInput)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	sinks := sink.Multi{sink.NewStorageSink(store)}
	if replayVerbose {
		sinks = append(sinks, sink.NewLogSink(logger))
	}
	o := buildOrchestrator(cfg, store, sinks, logger)

	n, err := replay(cmd.Context(), in, cmd.OutOrStdout(), o)
	if cerr := o.Close(context.Background()); cerr != nil {
		logger.Error("Failed to persist profiles", zap.Error(cerr))
		if err == nil {
			err = cerr
		}
	}
	logger.Info("Replay finished", zap.Int("messages", n))
	return err
}

// replay processes every line of in and writes the analyses to out as JSON
// lines. It returns the number of messages processed.
func replay(ctx context.Context, in io.Reader, out io.Writer, o *orchestrator.Orchestrator) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	n, line := 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var msg replayMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		analysis, err := o.ProcessMessage(ctx, msg.UserID, msg.Text, msg.Timestamp, msg.WritingTime)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := enc.Encode(analysis); err != nil {
			return n, err
		}
		n++
	}
	return n, scanner.Err()
}
