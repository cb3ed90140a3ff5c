package config

import "time"

// Config - корневая структура конфигурации приложения
// yaml и validate теги для парсинга и валидации

type Config struct {
	Logger LoggerConfig `yaml:"logger" validate:"required"`
	Server ServerConfig `yaml:"http-server" validate:"required"`
	DB     DB           `yaml:"db" validate:"required"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"min=0"`
}

// DB holds the engine tunables. Everything except the key and value widths
// may change between reopenings of a store.
type DB struct {
	Path      string `yaml:"path" validate:"required"`
	KeySize   int    `yaml:"key_size" validate:"min=1,max=65536"`
	ValueSize int    `yaml:"value_size" validate:"min=0,max=1048576"`

	// full compaction once sorted runs exceed this multiple of the resident size
	MaxSpaceAmp uint64 `yaml:"max_space_amp" validate:"min=1"`
	// log bytes that trigger a flush into a new sorted run
	MaxLogLength uint64 `yaml:"max_log_length" validate:"min=1"`
	MergeRatio   uint64 `yaml:"merge_ratio" validate:"min=1"`
	MergeWindow  int    `yaml:"merge_window" validate:"min=0"`

	LogBufferSize    int    `yaml:"log_buffer_size" validate:"min=1"`
	Compression      string `yaml:"compression" validate:"oneof=zstd snappy gzip"`
	CompressionLevel int    `yaml:"compression_level" validate:"min=1,max=22"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// DefaultDB returns the engine defaults for a store at path.
func DefaultDB(path string) DB {
	return DB{
		Path:             path,
		KeySize:          8,
		ValueSize:        8,
		MaxSpaceAmp:      2,
		MaxLogLength:     32 * 1024 * 1024,
		MergeRatio:       3,
		MergeWindow:      10,
		LogBufferSize:    32 * 1024,
		Compression:      "zstd",
		CompressionLevel: 3,
	}
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
		DB: DefaultDB("./data"),
	}
}
