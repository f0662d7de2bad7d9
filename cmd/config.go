package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cottand/bamlc/bamlc"
	"github.com/cottand/bamlc/internal/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when --config is not set
const DefaultConfigFile = "bamlc.yaml"

// Config is the content of a bamlc.yaml file. Command line flags take precedence.
type Config struct {
	// Schema is the schema file or folder used when a command is given none
	Schema string `yaml:"schema"`
	// Strict rejects unknown attributes, the default is true
	Strict *bool `yaml:"strict"`
	// LogLevel is a log/slog level: -4 debug, 0 info, 4 warn, 8 error
	LogLevel *int `yaml:"log_level"`
	// LogSections are the sections that log, like ir or jsonish
	LogSections []string `yaml:"log_sections"`
	// MaxScore makes `parse` fail when the coerced value needed more repairs than this.
	// Zero accepts any score.
	MaxScore int `yaml:"max_score"`
}

var (
	configPath  *string
	logLevel    *int
	logSections *[]string
)

// AddGlobalFlags registers the flags every subcommand understands
func AddGlobalFlags(root *cobra.Command) {
	configPath = root.PersistentFlags().StringP("config", "c", "", "path to a "+DefaultConfigFile+" file")
	logLevel = root.PersistentFlags().IntP("log-level", "l", int(slog.LevelError), "log level")
	logSections = root.PersistentFlags().StringSlice("log-sections", nil, "sections to log, like ir,jsonish")
}

// LoadConfig reads path. A missing file is only an error when it was asked for explicitly.
func LoadConfig(path string, explicit bool) (*Config, error) {
	file, err := os.Open(filepath.Clean(path))
	if os.IsNotExist(err) && !explicit {
		return &Config{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()

	config := &Config{}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return config, nil
}

func (c *Config) strict() bool {
	return c.Strict == nil || *c.Strict
}

// setup loads the config file and applies the logging settings, flags first
func setup(cmd *cobra.Command) (*Config, error) {
	path, explicit := DefaultConfigFile, false
	if configPath != nil && *configPath != "" {
		path, explicit = *configPath, true
	}
	config, err := LoadConfig(path, explicit)
	if err != nil {
		return nil, err
	}

	level := int(slog.LevelError)
	if config.LogLevel != nil {
		level = *config.LogLevel
	}
	if logLevel != nil && cmd.Flags().Changed("log-level") {
		level = *logLevel
	}
	log.SetLevel(slog.Level(level))

	sections := config.LogSections
	if logSections != nil && len(*logSections) > 0 {
		sections = *logSections
	}
	if len(sections) > 0 {
		log.EnableSections(sections...)
	}
	return config, nil
}

// schemaArg picks the schema location from the arguments, falling back to the config
func schemaArg(args []string, config *Config) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if config.Schema != "" {
		return config.Schema, nil
	}
	return "", errors.New("no schema given, pass a file or folder or set 'schema' in " + DefaultConfigFile)
}

// loadProject loads target, which is either a folder of schema files or a single file
func loadProject(target string, config *Config) (*bamlc.Project, error) {
	target, err := filepath.Abs(target)
	if err != nil {
		return nil, errors.Wrap(err, "could not get absolute path of target")
	}
	stat, err := os.Stat(target)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat target")
	}

	settings := bamlc.LoadSettings{Strict: config.strict()}
	var folder string
	if stat.IsDir() {
		folder = target
	} else {
		folder = filepath.Dir(target)
		settings.File = filepath.Base(target)
	}
	project, err := bamlc.LoadProject(os.DirFS(folder), settings)
	if err != nil {
		return nil, errors.Wrap(err, "could not load project")
	}
	return project, nil
}

func compiled(project *bamlc.Project) error {
	if project.Errors().HasError() {
		return errors.Errorf("errors found during compilation:\n%s", project.FormatErrors())
	}
	return nil
}
