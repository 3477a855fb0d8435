// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of both payment services.
//
// The values are read by viper from a config file or environement variables.
type Config struct {
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBSource            string        `mapstructure:"DB_SOURCE"`
	LedgerAddress       string        `mapstructure:"LEDGER_ADDRESS"`
	OrchestratorAddress string        `mapstructure:"ORCHESTRATOR_ADDRESS"`
	LedgerBaseURL       string        `mapstructure:"LEDGER_BASE_URL"`
	LedgerClientTimeout time.Duration `mapstructure:"LEDGER_CLIENT_TIMEOUT"`
	KafkaBrokers        string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic          string        `mapstructure:"KAFKA_TOPIC"`
	Environement        string        `mapstructure:"GO_ENV"`
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
