package main

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gonzalop/asyncftp"
	"github.com/gonzalop/asyncftp/transport"
)

// app holds the flags and dependencies shared by the commands.
type app struct {
	configFile  string
	serverURL   string
	user        string
	password    string
	active      bool
	encoding    string
	timeout     time.Duration
	concurrency int
	mlsd        bool
	bandwidth   int64
	debug       bool

	out    printer
	logger *zap.Logger

	// newTransport is replaced in tests.
	newTransport func(a *app) (asyncftp.Transport, error)
}

func newApp(out io.Writer) *app {
	return &app{
		out:          newPrinter(out),
		logger:       zap.NewNop(),
		newTransport: (*app).ftpTransport,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asyncftp",
		Short: "Concurrent FTP listings and transfers",
		Long: `asyncftp lists directories, downloads files and uploads files on an FTP
server. Transfers given in one invocation run concurrently.

The server is given with --url or with a YAML configuration file:

  url: ftp://ftp.example.com/pub
  username: user
  password: secret
  passive: true
  encoding: ISO-8859-1`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	f.StringVarP(&a.serverURL, "url", "u", "", "server URL (ftp://[user[:password]@]host[:port]/path)")
	f.StringVar(&a.user, "user", "", "user name, overrides the URL and configuration file")
	f.StringVar(&a.password, "password", "", "password for --user")
	f.BoolVar(&a.active, "active", false, "use active mode (PORT/EPRT) data connections")
	f.StringVar(&a.encoding, "encoding", "", "IANA name of the server's file name encoding")
	f.DurationVar(&a.timeout, "timeout", 30*time.Second, "connection and inactivity timeout")
	f.IntVarP(&a.concurrency, "concurrency", "j", 4, "maximum number of concurrent transfers")
	f.BoolVar(&a.mlsd, "mlsd", false, "list directories with MLSD instead of LIST")
	f.Int64Var(&a.bandwidth, "limit", 0, "bandwidth limit per transfer in bytes per second")
	f.BoolVarP(&a.debug, "debug", "d", false, "log FTP commands and replies")

	cmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newPutCmd(a),
	)
	return cmd
}

// setupLogging logs to stderr, at debug level with --debug and warnings
// only otherwise.
func (a *app) setupLogging() error {
	level := zapcore.WarnLevel
	if a.debug {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = !a.debug
	logger, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "creating logger")
	}
	a.logger = logger
	return nil
}

// configuration builds the server configuration from --config or --url and
// the flags that override them.
func (a *app) configuration() (*asyncftp.Configuration, error) {
	var opts []asyncftp.ConfigOption
	if a.user != "" {
		opts = append(opts, asyncftp.WithCredentials(a.user, a.password))
	}
	if a.active {
		opts = append(opts, asyncftp.WithPassive(false))
	}
	if a.encoding != "" {
		opts = append(opts, asyncftp.WithEncoding(a.encoding))
	}

	switch {
	case a.configFile != "" && a.serverURL != "":
		return nil, errors.New("--config and --url are mutually exclusive")
	case a.configFile != "":
		return asyncftp.LoadConfiguration(a.configFile, opts...)
	case a.serverURL != "":
		return asyncftp.NewConfiguration(a.serverURL, opts...)
	default:
		return nil, errors.New("no server given, use --url or --config")
	}
}

func (a *app) ftpTransport() (asyncftp.Transport, error) {
	opts := []transport.Option{
		transport.WithTimeout(a.timeout),
		transport.WithLogger(a.logger.Named("transport")),
		transport.WithBandwidthLimit(a.bandwidth),
	}
	if a.mlsd {
		opts = append(opts, transport.WithMLSD())
	}
	return transport.New(opts...)
}

// session returns a session for the configured server. Operations are
// cancelled when ctx is done.
func (a *app) session(ctx context.Context) (*asyncftp.Session, error) {
	cfg, err := a.configuration()
	if err != nil {
		return nil, err
	}
	t, err := a.newTransport(a)
	if err != nil {
		return nil, errors.Wrap(err, "creating transport")
	}
	if a.concurrency < 1 {
		return nil, errors.Errorf("invalid concurrency %d", a.concurrency)
	}
	a.logger.Debug("session",
		zap.String("url", cfg.URL().Redacted()),
		zap.Bool("passive", cfg.Passive()),
		zap.String("encoding", cfg.EncodingName()),
		zap.Int("concurrency", a.concurrency))
	return asyncftp.NewSession(ctx, cfg, t, a.concurrency, asyncftp.WithLogger(a.logger)), nil
}
