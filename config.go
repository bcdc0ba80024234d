package swiftbatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/joel-wright/swiftbatch/internal/httpconn"
	"github.com/joel-wright/swiftbatch/swiftapi"
)

// configFileName is the optional per-user settings file, resolved under
// the home directory.
const configFileName = ".swiftbatch"

// EnvConnectionOptions resolves connection settings from the standard
// OS_* environment variables, overlaid on an optional ~/.swiftbatch.yaml.
// Environment values win over file values.
func EnvConnectionOptions() (swiftapi.ConnectionOptions, error) {
	v := viper.New()
	v.SetEnvPrefix("os")
	v.AutomaticEnv()

	for _, key := range []string{
		"auth_url", "username", "password", "region_name",
		"storage_url", "auth_token", "timeout",
	} {
		_ = v.BindEnv(key)
	}

	if home, err := homedir.Dir(); err == nil {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
		if cwd, err := os.Getwd(); err == nil {
			v.AddConfigPath(filepath.Clean(cwd))
		}
		// A missing config file is fine; only a malformed one is an error.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return swiftapi.ConnectionOptions{}, err
			}
		}
	}

	opts := swiftapi.ConnectionOptions{
		AuthURL:    v.GetString("auth_url"),
		Username:   v.GetString("username"),
		Password:   v.GetString("password"),
		Region:     v.GetString("region_name"),
		StorageURL: v.GetString("storage_url"),
		AuthToken:  v.GetString("auth_token"),
	}
	if t := v.GetInt("timeout"); t > 0 {
		opts.Timeout = time.Duration(t) * time.Second
	}
	return opts, nil
}

// NewConnectionFactory returns a factory producing HTTP connections with
// the given settings. Each pool worker gets its own connection.
func NewConnectionFactory(opts swiftapi.ConnectionOptions) swiftapi.ConnectionFactory {
	return func(ctx context.Context) (swiftapi.Connection, error) {
		return httpconn.New(ctx, opts)
	}
}
