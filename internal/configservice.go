package internal

import (
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

const (
	// EnvPrefix is the prefix of all environment variables overriding configuration values.
	// Levels are separated by a double underscore: GAMEMIXER_CLOUDFLARE__API_TOKEN sets cloudflare.api_token
	EnvPrefix         = "GAMEMIXER_"
	envLevelSeparator = "__"
)

// ConfigService loads the application's configuration
type ConfigService interface {
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given YAML file. Environment variables override its values
	LoadFromFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

type configService struct {
	sync.RWMutex
	configFilename string
	envFilename    string
	config         *models.AppConfig
}

// NewConfigService creates a new configuration service instance with the given default file name. Variables from
// envFilename are added to the environment before loading - a missing file is ignored
func NewConfigService(configFilename, envFilename string) ConfigService {
	return &configService{
		configFilename: configFilename,
		envFilename:    envFilename,
	}
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile merges the defaults, the given YAML file (if it exists) and the environment - in this order
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	if s.envFilename != "" {
		if err := godotenv.Load(s.envFilename); err == nil {
			logger.WithField(log.FldFile, s.envFilename).Info("Loaded environment file")
		} else if !os.IsNotExist(err) {
			return errors.Wrap(err, "LoadFromFile: Failed to load environment file")
		}
	}

	defaults, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to load defaults")
	}
	if _, err := os.Stat(filename); err == nil {
		logger.WithField(log.FldFile, filename).Info("Loading configuration file")
		if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return errors.Wrapf(err, "LoadFromFile: Failed to load configuration file '%s'", filename)
		}
	} else {
		logger.WithField(log.FldFile, filename).Warn("Configuration file not found - using defaults and environment")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envToPath), nil); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to load environment variables")
	}

	conf := &models.AppConfig{}
	if err := k.Unmarshal("", conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to decode configuration")
	}
	s.Lock()
	s.config = conf
	s.Unlock()
	return nil
}

// envToPath maps GAMEMIXER_MAIL__SMTP_HOST to mail.smtp_host
func envToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, envLevelSeparator, ".")
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	s.RLock()
	defer s.RUnlock()
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}
