package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/partyrooms/games"
)

const rateBurst = 10

type Config struct {
	bind           string
	db             string
	guessTimeout   time.Duration
	permanentRooms []string
	port           int
	prefix         string
	profile        bool
	rateLimit      float64
	roomTTL        time.Duration
	sweepInterval  time.Duration
	tlsCert        string
	tlsKey         string
	tokenSecret    string
	verbose        bool
	version        bool

	seeds []seed
}

// seed is a permanent room created at startup.
type seed struct {
	code     string
	gameType games.GameType
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roomTTL <= 0 {
		return fmt.Errorf("invalid room ttl (must be positive): %s", c.roomTTL)
	}
	if c.sweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval (must be positive): %s", c.sweepInterval)
	}
	if c.guessTimeout < 0 {
		return fmt.Errorf("invalid guess timeout (must not be negative): %s", c.guessTimeout)
	}
	if c.rateLimit <= 0 {
		return fmt.Errorf("invalid rate limit (must be positive): %v", c.rateLimit)
	}

	c.seeds = c.seeds[:0]
	seen := make(map[string]bool, len(c.permanentRooms))
	for _, spec := range c.permanentRooms {
		s, err := parseSeed(spec)
		if err != nil {
			return err
		}
		if seen[s.code] {
			return fmt.Errorf("permanent room %q listed more than once", s.code)
		}
		seen[s.code] = true
		c.seeds = append(c.seeds, s)
	}

	return nil
}

// parseSeed reads a CODE=TYPE pair.
func parseSeed(spec string) (seed, error) {
	code, kind, ok := strings.Cut(spec, "=")
	if !ok {
		return seed{}, fmt.Errorf("invalid permanent room %q (expected CODE=TYPE)", spec)
	}

	code, err := games.NormalizeRoomCode(code)
	if err != nil {
		return seed{}, fmt.Errorf("invalid permanent room %q: %w", spec, err)
	}
	gt, err := games.ParseGameType(kind)
	if err != nil {
		return seed{}, fmt.Errorf("invalid permanent room %q: %w", spec, err)
	}

	return seed{code: code, gameType: gt}, nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYROOMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyrooms",
		Short:         "Shared rooms for party games, kept in sync over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYROOMS_BIND)")
	fs.StringVar(&cfg.db, "db", "", "path to sqlite database; rooms are kept in memory when empty (env: PARTYROOMS_DB)")
	fs.DurationVar(&cfg.guessTimeout, "guess-timeout", 30*time.Second, "time players have to guess before the round closes, 0 to disable (env: PARTYROOMS_GUESS_TIMEOUT)")
	fs.StringSliceVar(&cfg.permanentRooms, "permanent-room", nil, "CODE=TYPE room that is never swept, repeatable (env: PARTYROOMS_PERMANENT_ROOM)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYROOMS_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYROOMS_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYROOMS_PROFILE)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 5, "messages per second accepted from each connection (env: PARTYROOMS_RATE_LIMIT)")
	fs.DurationVar(&cfg.roomTTL, "room-ttl", 24*time.Hour, "time after the last change before a room may be swept (env: PARTYROOMS_ROOM_TTL)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Hour, "time between sweeps for expired rooms (env: PARTYROOMS_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYROOMS_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYROOMS_TLS_KEY)")
	fs.StringVar(&cfg.tokenSecret, "token-secret", "", "secret for signing session tokens; random per process when empty (env: PARTYROOMS_TOKEN_SECRET)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYROOMS_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYROOMS_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyrooms v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
