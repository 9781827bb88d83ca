package server

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config 服务端全部可配置项，支持 config.yaml 与 LOBBYRELAY_* 环境变量
type Config struct {
	// UDP 监听地址
	UDPAddr string `mapstructure:"udp_addr"`
	// HTTP 地址：WebSocket 网关与管理接口，留空则不启动
	HTTPAddr string `mapstructure:"http_addr"`
	// 编码格式：json 或 msgpack
	Codec string `mapstructure:"codec"`
	// 单个数据报最大字节数
	MaxDatagramSize int `mapstructure:"max_datagram_size"`

	Log struct {
		// 日志文件路径，留空输出到 stderr
		File       string `mapstructure:"file"`
		Level      string `mapstructure:"level"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`

	Lobby struct {
		// 倒计时步数与每步间隔
		CountdownTicks    int           `mapstructure:"countdown_ticks"`
		CountdownInterval time.Duration `mapstructure:"countdown_interval"`
		// 每个大厅保留的聊天条数上限
		ChatLogCap int `mapstructure:"chat_log_cap"`
		// 玩家无消息超过该时长即被移出大厅，0 表示不清理
		IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
		ReconnectTTL time.Duration `mapstructure:"reconnect_ttl"`
	} `mapstructure:"lobby"`

	World struct {
		TickInterval time.Duration `mapstructure:"tick_interval"`
		SpawnPoints  []Vec2        `mapstructure:"spawn_points"`
		Enemies      struct {
			Enabled     bool   `mapstructure:"enabled"`
			Count       int    `mapstructure:"count"`
			SpawnPoints []Vec2 `mapstructure:"spawn_points"`
			Character   string `mapstructure:"character"`
		} `mapstructure:"enemies"`
	} `mapstructure:"world"`

	RateLimit struct {
		// 每个对端每秒允许的入站消息数，0 表示不限流
		PerSecond float64 `mapstructure:"per_second"`
		Burst     int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`
}

const envVarPrefix = "LOBBYRELAY"

func setDefaults(v *viper.Viper) {
	def := DefaultWorldConfig()
	v.SetDefault("udp_addr", ":9999")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("codec", CodecJSON)
	v.SetDefault("max_datagram_size", 4096)

	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("lobby.countdown_ticks", 3)
	v.SetDefault("lobby.countdown_interval", time.Second)
	v.SetDefault("lobby.chat_log_cap", 100)
	v.SetDefault("lobby.idle_timeout", time.Duration(0))
	v.SetDefault("lobby.reconnect_ttl", 2*time.Minute)

	v.SetDefault("world.tick_interval", 10*time.Millisecond)
	v.SetDefault("world.spawn_points", def.SpawnPoints)
	v.SetDefault("world.enemies.enabled", def.EnemiesEnabled)
	v.SetDefault("world.enemies.count", def.EnemyCount)
	v.SetDefault("world.enemies.spawn_points", def.EnemySpawnPoints)
	v.SetDefault("world.enemies.character", def.EnemyCharacter)

	v.SetDefault("rate_limit.per_second", 200.0)
	v.SetDefault("rate_limit.burst", 400)
}

// DefaultConfig 不读文件和环境变量时的配置
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// 默认值类型固定，解码不会失败
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadConfig 读取 configPath 目录下的 config.yaml（可缺省），再叠加环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	// 嵌套键也能用环境变量覆盖，例如 lobby.countdown_ticks -> LOBBYRELAY_LOBBY_COUNTDOWN_TICKS
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, errors.Wrapf(err, "binding %s to %s", k, envVarPrefix+"_"+envVar)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查互相矛盾或无法运行的取值
func (c *Config) Validate() error {
	switch {
	case c.Lobby.CountdownTicks < 0:
		return errors.New("lobby.countdown_ticks must not be negative")
	case c.Lobby.CountdownInterval <= 0:
		return errors.New("lobby.countdown_interval must be positive")
	case c.World.TickInterval <= 0:
		return errors.New("world.tick_interval must be positive")
	case len(c.World.SpawnPoints) == 0:
		return errors.New("world.spawn_points must not be empty")
	case c.World.Enemies.Enabled && c.World.Enemies.Count > 0 && len(c.World.Enemies.SpawnPoints) == 0:
		return errors.New("world.enemies.spawn_points must not be empty when enemies are enabled")
	case c.Codec != CodecJSON && c.Codec != CodecMsgpack:
		return errors.Errorf("unknown codec %q", c.Codec)
	case c.MaxDatagramSize <= 0:
		return errors.New("max_datagram_size must be positive")
	}
	return nil
}

// WorldConfig 转成世界初始化参数
func (c *Config) WorldConfig() WorldConfig {
	return WorldConfig{
		SpawnPoints:      c.World.SpawnPoints,
		EnemiesEnabled:   c.World.Enemies.Enabled,
		EnemyCount:       c.World.Enemies.Count,
		EnemySpawnPoints: c.World.Enemies.SpawnPoints,
		EnemyCharacter:   c.World.Enemies.Character,
	}
}
