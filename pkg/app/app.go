package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/robopeer/pkg/log"
)

const usageColumns = 100

// RunFunc is the entrypoint of an application, called once options are
// loaded and validated.
type RunFunc func() error

// ConfigChangeFunc is called with the re-read configuration whenever the
// config file changes on disk.
type ConfigChangeFunc func(v *viper.Viper)

// NamedFlagSetOptions is implemented by the options of every robopeer binary.
type NamedFlagSetOptions interface {
	// Flags returns the flag sets of the options, grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in fields derived from other fields.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}

// App is a cobra command whose options come from flags, environment
// variables and an optional config file, in that order of precedence.
type App struct {
	name        string
	shortDesc   string
	description string
	run         RunFunc
	args        cobra.PositionalArgs
	options     NamedFlagSetOptions
	noConfig    bool
	onChange    ConfigChangeFunc

	configFile string
	viper      *viper.Viper
	cmd        *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions sets the options populated before the run function is called.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.run = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithNoConfig disables the --config flag and config file lookup.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithConfigWatch watches the config file and calls fn after each change.
func WithConfigWatch(fn ConfigChangeFunc) Option {
	return func(a *App) { a.onChange = fn }
}

// NewApp creates an App named name.
func NewApp(name string, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
		viper:     viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.buildCommand()
	return a
}

// Command returns the underlying cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the application and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
		RunE:          a.runCommand,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	global := fss.FlagSet("Global")
	global.BoolP("help", "h", false, fmt.Sprintf("help for %s", a.name))
	if !a.noConfig {
		global.StringVarP(&a.configFile, "config", "c", "",
			fmt.Sprintf("Read configuration from the specified file, support JSON, TOML, YAML. If unset, %s.yaml is looked up in ., $HOME/.%s and /etc/%s.", a.name, a.name, a.name))
	}
	for _, f := range fss.FlagSets {
		cmd.Flags().AddFlagSet(f)
	}
	cliflag.SetUsageAndHelpFunc(cmd, fss, usageColumns)

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if !a.noConfig && a.onChange != nil && a.viper.ConfigFileUsed() != "" {
		a.viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info("Config file changed", "file", e.Name, "op", e.Op.String())
			a.onChange(a.viper)
		})
		a.viper.WatchConfig()
	}

	if a.run != nil {
		return a.run()
	}
	return nil
}

// loadConfig merges the config file, the environment and the flags of cmd
// into the options.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+a.name))
		}
		v.AddConfigPath(filepath.Join("/etc", a.name))
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}
