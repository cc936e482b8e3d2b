// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек всех сервисов жизненного цикла.
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	ArchiveConnectionString string `yaml:"archive_connection_string"`
	SiteURL                 string `yaml:"site_url"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Inactivity              `yaml:"inactivity"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// RabbitMQ структура для настройки подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// SMTP структура для настройки SMTP-транспорта писем.
type SMTP struct {
	SMTPHost string `yaml:"host"`
	SMTPPort string `yaml:"port"`
	SMTPUser string `yaml:"user"`
	SMTPPass string `yaml:"pass"`
}

// Inactivity структура с порогами проверки неактивности и параметрами фоновой задачи.
// Пороги заданы в днях: первое напоминание на 75-й день неактивности,
// финальное через 7 дней, архивация ещё через 7, жёсткая отсечка — 90 дней.
type Inactivity struct {
	CutoffDays              int           `yaml:"cutoff_days" env-default:"90"`
	FirstReminderLeadDays   int           `yaml:"first_reminder_lead_days" env-default:"75"`
	FirstReminderWindowDays int           `yaml:"first_reminder_window_days" env-default:"7"`
	FinalReminderDelayDays  int           `yaml:"final_reminder_delay_days" env-default:"7"`
	ArchiveDelayDays        int           `yaml:"archive_delay_days" env-default:"7"`
	JobInterval             time.Duration `yaml:"job_interval" env-default:"24h"`
	JobWorkers              int           `yaml:"job_workers" env-default:"4"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной окружения CONFIG_PATH.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"ArchiveConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"Inactivity:\n"+
			"  CutoffDays: %d\n"+
			"  FirstReminderLeadDays: %d\n"+
			"  FirstReminderWindowDays: %d\n"+
			"  FinalReminderDelayDays: %d\n"+
			"  ArchiveDelayDays: %d\n"+
			"  JobInterval: %s\n"+
			"  JobWorkers: %d\n",
		c.Env,
		c.StorageConnectionString,
		c.ArchiveConnectionString,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RabbitMQURL,
		c.CutoffDays,
		c.FirstReminderLeadDays,
		c.FirstReminderWindowDays,
		c.FinalReminderDelayDays,
		c.ArchiveDelayDays,
		c.JobInterval,
		c.JobWorkers,
	)
}
