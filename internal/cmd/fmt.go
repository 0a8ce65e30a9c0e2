package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/stateful/triptych/pkg/document"
	"github.com/stateful/triptych/pkg/document/markup"
)

func fmtCmd() *cobra.Command {
	var write bool

	cmd := cobra.Command{
		Use:   "fmt [flags] FILE...",
		Short: "Format documents into the canonical markup",
		Long: `Parse documents and serialize them again. Every block gets an attribute
comment with a unique ID and the settings are written as frontmatter.

FILE can be "-" to read from stdin or an https:// URL. Without --write the
result is printed to stdout and exactly one FILE is accepted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !write && len(args) > 1 {
				return errors.New("multiple files require --write")
			}

			_, logger, err := setup(args[0])
			if err != nil {
				return err
			}
			codec := newCodec(logger)

			if !write {
				result, err := format(cmd, codec, args[0], logger)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(result))
				return errors.Wrap(err, "failed to write result")
			}

			// Keep formatting the remaining files after a failure.
			var errs error
			for _, name := range args {
				errs = multierr.Append(errs, formatInPlace(cmd, codec, name, logger))
			}
			return errs
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the source files.")

	return &cmd
}

func format(cmd *cobra.Command, codec *markup.Codec, name string, logger *zap.Logger) (string, error) {
	data, err := readInput(cmd, name, logger)
	if err != nil {
		return "", err
	}

	blocks, settings, err := codec.Parse(string(data))
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse %s", name)
	}
	if settings == nil {
		defaults := document.DefaultSettings()
		settings = &defaults
	}

	result, err := codec.Serialize(blocks, *settings)
	return result, errors.Wrapf(err, "failed to serialize %s", name)
}

func formatInPlace(cmd *cobra.Command, codec *markup.Codec, name string, logger *zap.Logger) error {
	if name == "-" || strings.HasPrefix(name, "https://") {
		return errors.Errorf("cannot write back to %s", name)
	}

	info, err := os.Stat(name)
	if err != nil {
		return errors.WithStack(err)
	}

	result, err := format(cmd, codec, name, logger)
	if err != nil {
		return err
	}

	logger.Debug("formatted document", zap.String("file", name), zap.Int("bytes", len(result)))
	return errors.WithStack(os.WriteFile(name, []byte(result), info.Mode().Perm()))
}
