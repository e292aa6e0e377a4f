package main

import (
	"os"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/file"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const defaultOutput = "./config/config.toml"

// Sample config export, every section is written with its built-in defaults
func main() {
	log.Init(false)

	output := defaultOutput
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	cf := config.Default()

	// Fields that are omitted when empty still belong into the sample
	cf.Metrics.Listen = config.SampleMetricsListen

	defaultConfigBytes, err := toml.Marshal(cf)
	if err != nil {
		log.Fatal("failed to marshal the default config", zap.Error(err))
	}

	if err := file.WriteTo(output, defaultConfigBytes); err != nil {
		log.Fatal("failed to write config file", zap.String("path", output), zap.Error(err))
	}

	log.Info("sample config written", zap.String("path", output))
}
