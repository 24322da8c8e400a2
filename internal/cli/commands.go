package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	formstate "github.com/goliatone/go-formstate"
	"github.com/goliatone/go-formstate/pkg/activity"
	"github.com/goliatone/go-formstate/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrRecordNotFound is returned by show when the key holds nothing.
var ErrRecordNotFound = errors.New("record not found")

type keysOutput struct {
	Area string   `yaml:"area"`
	Keys []string `yaml:"keys"`
}

func (a *app) keysCommand() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			out := keysOutput{Area: a.area, Keys: []string{}}
			for _, key := range keys {
				if strings.HasPrefix(key, prefix) {
					out.Keys = append(out.Keys, key)
				}
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list keys with this prefix")
	return cmd
}

func (a *app) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a stored record and its disabled-state entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			desc, ok, err := formstate.DescribeStored(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, args[0])
			}
			return writeYAML(cmd.OutOrStdout(), desc)
		},
	}
}

type removedOutput struct {
	Removed []string `yaml:"removed"`
}

func (a *app) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <prefix>",
		Short: "Remove every key starting with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			removed, err := formstate.ClearByPrefix(ctx, store, args[0])
			if err != nil {
				return err
			}
			a.log.Debug("cleared", zap.String("prefix", args[0]), zap.Int("count", len(removed)))
			if len(removed) > 0 {
				event := activity.BuildKeysClearedEvent(a.input(args[0], removed))
				if err := a.emitter().Emit(ctx, event); err != nil {
					a.log.Warn("activity hook failed", zap.Error(err))
				}
			}
			if removed == nil {
				removed = []string{}
			}
			return writeYAML(cmd.OutOrStdout(), removedOutput{Removed: removed})
		},
	}
}

func (a *app) removeKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-keys <record> <key>...",
		Short: "Drop entries from a stored record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := formstate.RemoveKeysFromRecord(cmd.Context(), store, args[0], args[1:]...); err != nil {
				return err
			}
			a.log.Debug("removed record keys", zap.String("record", args[0]), zap.Strings("keys", args[1:]))
			return nil
		},
	}
}

func (a *app) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Erase a record together with its disabled-state entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			removed, err := resetRecord(ctx, store, args[0])
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				event := activity.BuildFormResetEvent(a.input(args[0], removed))
				if err := a.emitter().Emit(ctx, event); err != nil {
					a.log.Warn("activity hook failed", zap.Error(err))
				}
			}
			return writeYAML(cmd.OutOrStdout(), removedOutput{Removed: removed})
		},
	}
}

func resetRecord(ctx context.Context, store storage.Store, key string) ([]string, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	shadowPrefix := key + formstate.DisabledPrefix
	removed := []string{}
	for _, k := range keys {
		if k != key && !strings.HasPrefix(k, shadowPrefix) {
			continue
		}
		if err := store.RemoveItem(ctx, k); err != nil {
			return removed, fmt.Errorf("remove %s: %w", k, err)
		}
		removed = append(removed, k)
	}
	return removed, nil
}
