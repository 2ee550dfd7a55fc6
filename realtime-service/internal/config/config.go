package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/ice"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Store     StoreConfig
	Database  database.Config
	Mongo     store.MongoConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Messaging MessagingConfig
	Signaling SignalingConfig
	Typing    TypingConfig
	Breaker   BreakerConfig
	WebRTC    ice.Config `mapstructure:"webrtc"`
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// StoreConfig selects the message store backend: "gorm" or "mongo".
type StoreConfig struct {
	Driver string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Prefix   string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      string
	CallTopic    string `mapstructure:"call_topic"`
	MessageTopic string `mapstructure:"message_topic"`
	Partitions   int
}

type MessagingConfig struct {
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	RequireParticipant bool          `mapstructure:"require_participant"`
	MaxContentLength   int           `mapstructure:"max_content_length"`
}

type SignalingConfig struct {
	SingleCall    bool          `mapstructure:"single_call"`
	RingTimeout   time.Duration `mapstructure:"ring_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	ValidateSDP   bool          `mapstructure:"validate_sdp"`
}

type TypingConfig struct {
	Interval time.Duration
	Burst    int
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config", ".env")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "wes-io-chat")
	v.SetDefault("store.driver", "gorm")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.call_topic", "call-events")
	v.SetDefault("kafka.message_topic", "message-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("messaging.store_timeout", "5s")
	v.SetDefault("messaging.require_participant", true)
	v.SetDefault("messaging.max_content_length", 4000)
	v.SetDefault("signaling.single_call", false)
	v.SetDefault("signaling.ring_timeout", "60s")
	v.SetDefault("signaling.sweep_interval", "5s")
	v.SetDefault("signaling.validate_sdp", true)
	v.SetDefault("typing.interval", "2s")
	v.SetDefault("typing.burst", 1)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("webrtc.turn_key_id", "")
	v.SetDefault("webrtc.turn_key", "")
	v.SetDefault("webrtc.turn_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.dsn", "DB_DSN")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("webrtc.turn_key_id", "TURN_KEY_ID")
	v.BindEnv("webrtc.turn_key", "TURN_KEY_API_TOKEN")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ReadTimeout = parseDuration(v, "server.read_timeout", 15*time.Second)
	cfg.Server.WriteTimeout = parseDuration(v, "server.write_timeout", 15*time.Second)
	cfg.Server.IdleTimeout = parseDuration(v, "server.idle_timeout", 60*time.Second)
	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Database.ConnMaxLifetime = parseDuration(v, "database.conn_max_lifetime", time.Hour)
	cfg.Mongo.ConnectTimeout = parseDuration(v, "mongo.connect_timeout", 10*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 5*time.Minute)
	cfg.Messaging.StoreTimeout = parseDuration(v, "messaging.store_timeout", 5*time.Second)
	cfg.Signaling.RingTimeout = parseDuration(v, "signaling.ring_timeout", 60*time.Second)
	cfg.Signaling.SweepInterval = parseDuration(v, "signaling.sweep_interval", 5*time.Second)
	cfg.Typing.Interval = parseDuration(v, "typing.interval", 2*time.Second)
	cfg.Breaker.Interval = parseDuration(v, "breaker.interval", 60*time.Second)
	cfg.Breaker.Timeout = parseDuration(v, "breaker.timeout", 30*time.Second)
	cfg.WebRTC.TurnTTL = parseDuration(v, "webrtc.turn_ttl", 24*time.Hour)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
