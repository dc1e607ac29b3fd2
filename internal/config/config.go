package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Playback PlaybackConfig `yaml:"playback"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type PlaybackConfig struct {
	FPS          float64       `yaml:"fps"`
	LastFrame    int64         `yaml:"last_frame"`
	Loop         bool          `yaml:"loop"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type DecoderConfig struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CacheCapacity  int           `yaml:"cache_capacity"`
	CacheMaxSize   int64         `yaml:"cache_max_size"` // bytes
	MetadataCache  int           `yaml:"metadata_cache"` // entries
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         6541,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
		},
		Playback: PlaybackConfig{
			FPS:          60,
			LastFrame:    0,
			Loop:         false,
			TickInterval: 16 * time.Millisecond,
		},
		Decoder: DecoderConfig{
			URL:            "ws://127.0.0.1:3000/ws",
			ConnectTimeout: 5 * time.Second,
			CacheCapacity:  256,
			CacheMaxSize:   512 * 1024 * 1024, // 512 MB
			MetadataCache:  128,
		},
		Database: DatabaseConfig{
			Path: "data/framestage.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
