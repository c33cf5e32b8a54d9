package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/pheval-phen2gene/internal/config"
	"github.com/roach88/pheval-phen2gene/internal/runid"
)

// formatter builds the output formatter of cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: o.Verbose,
	}
}

// logger configures slog on the command's stderr and installs it as default.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return o.loggerTo(cmd.ErrOrStderr())
}

func (o *RootOptions) loggerTo(w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads --config with PHEN2GENE_* overrides taken from the
// process environment, falling back to --env-file for unset variables.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	env, err := o.environment()
	if err != nil {
		return nil, err
	}
	return config.Load(o.Config, config.LoadOptions{Env: env})
}

func (o *RootOptions) environment() (map[string]string, error) {
	environ := o.Environ
	if environ == nil {
		environ = os.Environ()
	}
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	if o.EnvFile == "" {
		return env, nil
	}
	fromFile, err := godotenv.Read(o.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read env file", err)
	}
	for k, v := range fromFile {
		if _, set := env[k]; !set {
			env[k] = v
		}
	}
	return env, nil
}

func (o *RootOptions) runIDs() runid.Generator {
	if o.RunIDs != nil {
		return o.RunIDs
	}
	return runid.UUIDv7Generator{}
}
