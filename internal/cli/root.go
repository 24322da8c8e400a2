// Package cli implements the formstate maintenance command over a SQLite
// backed store.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-formstate/pkg/activity"
	"github.com/goliatone/go-formstate/pkg/storage/sqlitestore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Version is stamped at build time.
var Version = "dev"

type app struct {
	dbPath  string
	area    string
	actor   string
	channel string
	verbose bool

	level zap.AtomicLevel
	log   *zap.Logger
}

// NewRootCommand builds the command tree. Logs go to the command's stderr.
func NewRootCommand() *cobra.Command {
	a := &app{level: zap.NewAtomicLevelAt(zap.InfoLevel), log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "formstate",
		Short:         "Inspect and maintain persisted form state",
		Long:          "Inspect, clear and trim form state records kept in a SQLite key-value store.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.verbose {
				a.level.SetLevel(zap.DebugLevel)
			}
			a.log = newLogger(cmd.ErrOrStderr(), a.level)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.dbPath, "db", "formstate.db", "SQLite database file")
	flags.StringVar(&a.area, "area", sqlitestore.DefaultArea, "Storage area (local or session)")
	flags.StringVar(&a.actor, "actor", "", "Actor id reported with maintenance events")
	flags.StringVar(&a.channel, "channel", "formstate-cli", "Activity channel")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		a.keysCommand(),
		a.showCommand(),
		a.clearCommand(),
		a.removeKeysCommand(),
		a.resetCommand(),
	)
	return root
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newLogger(w io.Writer, level zap.AtomicLevel) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core).Named("formstate")
}

func (a *app) openStore() (*sqlitestore.Store, error) {
	a.log.Debug("open store", zap.String("db", a.dbPath), zap.String("area", a.area))
	store, err := sqlitestore.Open(a.dbPath, sqlitestore.WithArea(a.area))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// emitter reports maintenance events through the logger.
func (a *app) emitter() *activity.Emitter {
	hook := activity.HookFunc(func(_ context.Context, event activity.Event) error {
		a.log.Info("activity",
			zap.String("verb", event.Verb),
			zap.String("object", event.ObjectID),
			zap.String("channel", event.Channel),
			zap.String("actor", event.ActorID),
			zap.String("area", event.Area),
			zap.Strings("keys", event.Keys),
		)
		return nil
	})
	return activity.NewEmitter(activity.Hooks{hook}, activity.Config{
		Enabled: true,
		Channel: a.channel,
		ActorID: a.actor,
	})
}

func (a *app) input(key string, keys []string) activity.FormEventInput {
	return activity.FormEventInput{
		FormKey: key,
		Area:    a.area,
		Keys:    keys,
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
