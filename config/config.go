package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Bot      BotConfig      `mapstructure:"bot"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress string `mapstructure:"http_address"`
	RPCAddress  string `mapstructure:"rpc_address"`
	// DriverID names this process. A node with a driver id runs the
	// automation only of rooms it claimed first; empty drives every room.
	DriverID string `mapstructure:"driver_id"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// GameConfig 阶段时长，单位为 tick（秒）
type GameConfig struct {
	DiscussionTicks  int    `mapstructure:"discussion_ticks"`
	BotSpeakTick     int    `mapstructure:"bot_speak_tick"`
	BotPassTick      int    `mapstructure:"bot_pass_tick"`
	NightZeroTicks   int    `mapstructure:"night_zero_ticks"`
	PlanningTicks    int    `mapstructure:"planning_ticks"`
	BotPlanTick      int    `mapstructure:"bot_plan_tick"`
	NightTicks       int    `mapstructure:"night_ticks"`
	VoteDelayTicks   int    `mapstructure:"vote_delay_ticks"`
	VoteGraceTicks   int    `mapstructure:"vote_grace_ticks"`
	InfoDisplayTicks int    `mapstructure:"info_display_ticks"`
	DefaultMode      string `mapstructure:"default_mode"`
}

type BotConfig struct {
	NominateChance float64 `mapstructure:"nominate_chance"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.driver_id", "")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "kruivka")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("game.discussion_ticks", 30)
	v.SetDefault("game.bot_speak_tick", 2)
	v.SetDefault("game.bot_pass_tick", 5)
	v.SetDefault("game.night_zero_ticks", 60)
	v.SetDefault("game.planning_ticks", 30)
	v.SetDefault("game.bot_plan_tick", 3)
	v.SetDefault("game.night_ticks", 15)
	v.SetDefault("game.vote_delay_ticks", 5)
	v.SetDefault("game.vote_grace_ticks", 3)
	v.SetDefault("game.info_display_ticks", 3)
	v.SetDefault("game.default_mode", "closed")

	v.SetDefault("bot.nominate_chance", 0.4)
	v.SetDefault("bot.seed", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads config.yaml from path, then .env, then the environment
// (SERVER_HTTP_ADDRESS overrides server.http_address). A missing file is fine.
func LoadConfig(path string) (config *Config, err error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
