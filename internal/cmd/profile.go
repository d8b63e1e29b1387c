package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/emotrack/internal/models"
	"github.com/xaenox/emotrack/internal/profile"
	"github.com/xaenox/emotrack/internal/storage"
	"github.com/xaenox/emotrack/pkg/config"
)

var profileRaw bool

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show a stored user profile",
	Long: `Show a stored user profile: top emotions per timescale, most frequent
emotions and activation progress. Use --raw to print the stored snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)

	profileCmd.Flags().BoolVar(&profileRaw, "raw", false, "Print the stored snapshot as is")
}

type profileReport struct {
	UserID       string                                      `json:"user_id"`
	CreatedAt    time.Time                                   `json:"created_at"`
	LastUpdated  time.Time                                   `json:"last_updated"`
	MessageCount int                                         `json:"message_count"`
	Top          map[models.Timescale][]models.EmotionScore  `json:"top_emotions"`
	Frequent     []profile.FrequencyScore                    `json:"frequent_emotions"`
	Activation   map[models.Timescale]profile.ActivationInfo `json:"activation"`
}

func runProfile(cmd *cobra.Command, args []string) error {
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

	data, err := store.GetProfile(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no profile stored for user %q", args[0])
	}
	if err != nil {
		return err
	}

	if profileRaw {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}

	p, err := profile.Load(data, profileConfig(cfg.Profile))
	if err != nil {
		logger.Warn("Stored profile is unreadable", zap.String("user_id", args[0]), zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report(p, time.Now()))
}

func report(p *profile.Profile, now time.Time) profileReport {
	r := profileReport{
		UserID:       p.UserID,
		CreatedAt:    p.CreatedAt,
		LastUpdated:  p.LastUpdated,
		MessageCount: p.MessageCount,
		Top:          make(map[models.Timescale][]models.EmotionScore, len(models.Timescales)),
		Frequent:     p.TopByFrequency(5),
		Activation:   p.ActivationReport(now),
	}
	for _, t := range models.Timescales {
		r.Top[t] = p.TopEmotions(t, 5)
	}
	return r
}
