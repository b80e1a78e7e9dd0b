package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Log        LogConfig        `yaml:"log"`
	Events     EventsConfig     `yaml:"events"`
}

// ServerConfig は HTTP / gRPC ヘルスチェックサーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	HealthAddr         string        `yaml:"health_addr"`
	BasePath           string        `yaml:"base_path"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	// Driver は "postgres" または "memory" です。memory の場合は接続設定を検証しません。
	Driver             string        `yaml:"driver"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	IsolationLevel     string        `yaml:"isolation_level"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// AttendanceConfig は打刻の業務ルールに関する設定です。
type AttendanceConfig struct {
	// UTCOffset は業務タイムゾーンのオフセットです (例: "-03:00")。
	UTCOffset string         `yaml:"utc_offset"`
	Location  *time.Location `yaml:"-"`
}

// LogConfig はログ出力の設定です。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EventsConfig は打刻イベント配信の設定です。Brokers が空の場合は配信しません。
type EventsConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
	// CreateTopic が true の場合、起動時にトピックを作成します。
	CreateTopic       bool  `yaml:"create_topic"`
	Partitions        int32 `yaml:"partitions"`
	ReplicationFactor int16 `yaml:"replication_factor"`
	// DeliveryTimeout は 1 件の配信を待つ上限です。
	DeliveryTimeout    time.Duration `yaml:"-"`
	DeliveryTimeoutRaw string        `yaml:"delivery_timeout"`
}

// ストレージのドライバです。
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// 読み書きトランザクションで利用できる分離レベルです。
const (
	IsolationReadCommitted  = "read_committed"
	IsolationRepeatableRead = "repeatable_read"
	IsolationSerializable   = "serializable"
)

const (
	defaultHealthAddr      = ":50051"
	defaultBasePath        = "/api/v1"
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
	defaultUTCOffset       = "-03:00"
	defaultEventsTopic     = "attendance.time-records"
	defaultEventsClientID  = "chronos"
	defaultDeliveryTimeout = 5 * time.Second
)

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Attendance.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Events.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if s.HealthAddr == "" {
		s.HealthAddr = defaultHealthAddr
	}
	if s.BasePath == "" {
		s.BasePath = defaultBasePath
	}
	if !strings.HasPrefix(s.BasePath, "/") {
		return fmt.Errorf("config: server.base_path must start with /")
	}
	s.BasePath = strings.TrimRight(s.BasePath, "/")
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = defaultMaxBodyBytes
	}

	timeout, err := parseDurationAllowEmpty(s.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	s.ShutdownTimeout = timeout

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	switch d.Driver {
	case "":
		d.Driver = DriverPostgres
	case DriverPostgres:
	case DriverMemory:
		return nil
	default:
		return fmt.Errorf("config: database.driver %q is not supported", d.Driver)
	}

	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	d.IsolationLevel = strings.ToLower(strings.TrimSpace(d.IsolationLevel))
	switch d.IsolationLevel {
	case "":
		d.IsolationLevel = IsolationReadCommitted
	case IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
	default:
		return fmt.Errorf("config: database.isolation_level %q is not supported", d.IsolationLevel)
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (a *AttendanceConfig) validateAndNormalize() error {
	if strings.TrimSpace(a.UTCOffset) == "" {
		a.UTCOffset = defaultUTCOffset
	}

	loc, err := ParseUTCOffset(a.UTCOffset)
	if err != nil {
		return fmt.Errorf("config: attendance.utc_offset: %w", err)
	}
	a.Location = loc

	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "":
		l.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not supported", l.Level)
	}

	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	switch l.Format {
	case "":
		l.Format = "json"
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is not supported", l.Format)
	}

	return nil
}

func (e *EventsConfig) validateAndNormalize() error {
	brokers := make([]string, 0, len(e.Brokers))
	for _, b := range e.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	e.Brokers = brokers
	if e.Topic == "" {
		e.Topic = defaultEventsTopic
	}
	if e.ClientID == "" {
		e.ClientID = defaultEventsClientID
	}
	if e.Partitions <= 0 {
		e.Partitions = 1
	}
	if e.ReplicationFactor <= 0 {
		e.ReplicationFactor = 1
	}

	timeout, err := parseDurationAllowEmpty(e.DeliveryTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: events.delivery_timeout: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	e.DeliveryTimeout = timeout

	return nil
}

// Enabled はイベント配信が設定されているかを返します。
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

// ParseUTCOffset は "±HH:MM" 形式のオフセットから固定タイムゾーンを生成します。
func ParseUTCOffset(raw string) (*time.Location, error) {
	value := strings.TrimSpace(raw)
	if len(value) != 6 || (value[0] != '+' && value[0] != '-') || value[3] != ':' {
		return nil, fmt.Errorf("offset %q must be in ±HH:MM format", raw)
	}

	hours, err := strconv.Atoi(value[1:3])
	if err != nil || hours > 14 {
		return nil, fmt.Errorf("offset %q has invalid hours", raw)
	}
	minutes, err := strconv.Atoi(value[4:6])
	if err != nil || minutes > 59 {
		return nil, fmt.Errorf("offset %q has invalid minutes", raw)
	}

	seconds := hours*60*60 + minutes*60
	if value[0] == '-' {
		seconds = -seconds
	}

	return time.FixedZone("UTC"+value, seconds), nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報は URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
