package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	port         int
	prefix       string
	profile      bool
	questionsDir string
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool

	forcedRevealTimeout time.Duration
	autoAdvanceDelay    time.Duration
	reconnectGrace      time.Duration
	closedRoomTTL       time.Duration
	closedRoomSweep     time.Duration
	roomListTTL         time.Duration

	pointsCorrectGuess  int
	pointsDeceiverBonus int
	pointsHonestEvasion int
	pointsDeceiverEvade int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.forcedRevealTimeout <= 0 || c.autoAdvanceDelay <= 0 || c.reconnectGrace <= 0 {
		return errors.New("timer durations must be positive")
	}
	if c.closedRoomTTL <= 0 || c.closedRoomSweep <= 0 || c.roomListTTL <= 0 {
		return errors.New("ttl durations must be positive")
	}
	if c.pointsCorrectGuess <= 0 || c.pointsDeceiverBonus < 0 || c.pointsHonestEvasion < 0 || c.pointsDeceiverEvade < 0 {
		return errors.New("point awards must be non-negative (correct-guess must be positive)")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) scoreTable() ScoreTable {
	return ScoreTable{
		CorrectGuess:    c.pointsCorrectGuess,
		DeceiverBonus:   c.pointsDeceiverBonus,
		HonestEvasion:   c.pointsHonestEvasion,
		DeceiverEvasion: c.pointsDeceiverEvade,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("XIABAIWANG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "xiabaiwang",
		Short:         "A real-time bluffing party game, served from a single binary.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: XIABAIWANG_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: XIABAIWANG_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: XIABAIWANG_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: XIABAIWANG_PROFILE)")
	fs.StringVar(&cfg.questionsDir, "questions-dir", "", "directory holding question/answer image pairs (env: XIABAIWANG_QUESTIONS_DIR)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: XIABAIWANG_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: XIABAIWANG_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: XIABAIWANG_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: XIABAIWANG_VERSION)")

	fs.DurationVar(&cfg.forcedRevealTimeout, "forced-reveal-timeout", 30*time.Second, "time before the honest player's reveal is forced (env: XIABAIWANG_FORCED_REVEAL_TIMEOUT)")
	fs.DurationVar(&cfg.autoAdvanceDelay, "auto-advance-delay", 5*time.Second, "pause between a vote result and the next round (env: XIABAIWANG_AUTO_ADVANCE_DELAY)")
	fs.DurationVar(&cfg.reconnectGrace, "reconnect-grace", 30*time.Second, "time a dropped player's seat is held for reconnection (env: XIABAIWANG_RECONNECT_GRACE)")
	fs.DurationVar(&cfg.closedRoomTTL, "closed-room-ttl", time.Hour, "how long closed-room notices are retained (env: XIABAIWANG_CLOSED_ROOM_TTL)")
	fs.DurationVar(&cfg.closedRoomSweep, "closed-room-sweep", 5*time.Minute, "interval between closed-room record sweeps (env: XIABAIWANG_CLOSED_ROOM_SWEEP)")
	fs.DurationVar(&cfg.roomListTTL, "room-list-ttl", time.Second, "memoization window for the public room list (env: XIABAIWANG_ROOM_LIST_TTL)")

	fs.IntVar(&cfg.pointsCorrectGuess, "points-correct-guess", 2, "points for the informed player on a correct honest guess (env: XIABAIWANG_POINTS_CORRECT_GUESS)")
	fs.IntVar(&cfg.pointsDeceiverBonus, "points-deceiver-bonus", 1, "extra points for also naming a deceiver correctly (env: XIABAIWANG_POINTS_DECEIVER_BONUS)")
	fs.IntVar(&cfg.pointsHonestEvasion, "points-honest-evasion", 3, "points for the honest player when the guess misses (env: XIABAIWANG_POINTS_HONEST_EVASION)")
	fs.IntVar(&cfg.pointsDeceiverEvade, "points-deceiver-evasion", 1, "points for each deceiver when the guess misses (env: XIABAIWANG_POINTS_DECEIVER_EVASION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("xiabaiwang v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
