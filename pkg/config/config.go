package config

import (
	"strings"
	"time"
)

// Client definition realtime_client YAML structure
type Client struct {
	GatewayURL string        `mapstructure:"gateway_url"`
	UserID     string        `mapstructure:"user_id"`
	Token      string        `mapstructure:"token"`
	Namespaces []string      `mapstructure:"namespaces"`
	Reconnect  RetryConfig   `mapstructure:"reconnect"`
	WaitSocket RetryConfig   `mapstructure:"wait_socket"`
	REST       RESTConfig    `mapstructure:"rest"`
	Log        LogConfig     `mapstructure:"log"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
}

// Gateway definition realtime_gateway YAML structure
type Gateway struct {
	Port         string             `mapstructure:"port"`
	JWTSecret    string             `mapstructure:"jwt_secret"`
	Relay        string             `mapstructure:"relay"` // redis | nats | memory
	Redis        RedisConfig        `mapstructure:"redis"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Notification NotificationSource `mapstructure:"notification"`
	Chatbot      ChatbotConfig      `mapstructure:"chatbot"`
	Log          LogConfig          `mapstructure:"log"`
	Pprof        bool               `mapstructure:"pprof"`
	PprofAddr    string             `mapstructure:"pprof_addr"`
	PingInterval time.Duration      `mapstructure:"ping_interval"`
	SendBuffer   int                `mapstructure:"send_buffer"`
}

// RetryConfig bounded retry, RetryInterval between attempts
type RetryConfig struct {
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// RESTConfig notification page API
type RESTConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig logger setting
type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Debug bool   `mapstructure:"debug"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	RedisDB    int    `mapstructure:"redis_db"`
	MasterName string `mapstructure:"master_name"`
	RetryConfig `mapstructure:",squash"`
}

// SplitAddrs Addr is a comma separated list, sentinel addresses in sentinel mode
func (r RedisConfig) SplitAddrs() []string {
	var out []string
	for _, a := range strings.Split(r.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// NATSConfig nats relay setting
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	RetryConfig   `mapstructure:",squash"`
}

// NotificationSource where pushed notifications come from: kafka | rabbitmq | none
type NotificationSource struct {
	Kind          string        `mapstructure:"kind"`
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	GroupID       string        `mapstructure:"group_id"`
	URL           string        `mapstructure:"url"`
	Queue         string        `mapstructure:"queue"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// ChatbotConfig crawler event channel
type ChatbotConfig struct {
	Channel string `mapstructure:"channel"`
}

// Defaults fills zero values of a client config
func (c *Client) Defaults() {
	if len(c.Namespaces) == 0 {
		c.Namespaces = []string{"/chat", "/notification"}
	}
	if c.Reconnect.RetryCount == 0 {
		c.Reconnect.RetryCount = 5
	}
	if c.Reconnect.RetryInterval == 0 {
		c.Reconnect.RetryInterval = 2 * time.Second
	}
	if c.WaitSocket.RetryCount == 0 {
		c.WaitSocket.RetryCount = 10
	}
	if c.WaitSocket.RetryInterval == 0 {
		c.WaitSocket.RetryInterval = 100 * time.Millisecond
	}
	if c.REST.PageSize == 0 {
		c.REST.PageSize = 20
	}
	if c.REST.Timeout == 0 {
		c.REST.Timeout = 10 * time.Second
	}
	if c.WriteWait == 0 {
		c.WriteWait = 10 * time.Second
	}
}

// Defaults fills zero values of a gateway config
func (g *Gateway) Defaults() {
	if g.Port == "" {
		g.Port = "8090"
	}
	if g.Relay == "" {
		g.Relay = "memory"
	}
	if g.Notification.Kind == "" {
		g.Notification.Kind = "none"
	}
	if g.Notification.RetryCount == 0 {
		g.Notification.RetryCount = 5
	}
	if g.Notification.RetryInterval == 0 {
		g.Notification.RetryInterval = 2 * time.Second
	}
	if g.Chatbot.Channel == "" {
		g.Chatbot.Channel = "chatbot:events"
	}
	if g.NATS.SubjectPrefix == "" {
		g.NATS.SubjectPrefix = "realtime"
	}
	if g.NATS.RetryCount == 0 {
		g.NATS.RetryCount = 5
	}
	if g.NATS.RetryInterval == 0 {
		g.NATS.RetryInterval = 2 * time.Second
	}
	if g.PingInterval == 0 {
		g.PingInterval = 30 * time.Second
	}
	if g.SendBuffer == 0 {
		g.SendBuffer = 64
	}
	if g.Redis.RetryCount == 0 {
		g.Redis.RetryCount = 5
	}
	if g.Redis.RetryInterval == 0 {
		g.Redis.RetryInterval = 2 * time.Second
	}
}
