// Package config defines the backup system configuration.
package config

import (
	"errors"
	"fmt"
)

type Config struct {
	BitrixRoot      string   `yaml:"bitrixRoot"`
	BackupDir       string   `yaml:"backupDir"`
	MaxBackups      int      `yaml:"maxBackups"`
	MinDiskSpaceKB  int64    `yaml:"minDiskSpaceKB"`
	ExcludePatterns []string `yaml:"excludePatterns"`
	SystemConfigs   []string `yaml:"systemConfigs"`

	// "local" keeps artifacts on disk only, "s3" uploads and rotates remotely.
	StorageType string `yaml:"storageType"`

	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
	Email    EmailConfig    `yaml:"email"`

	// Optional backend sections. A nil section means the backend is not
	// configured; asking for its client is a configuration error.
	S3            *S3Config     `yaml:"s3"`
	S3WorkStorage *S3WorkConfig `yaml:"s3WorkStorage"`
	SMTP          *SMTPConfig   `yaml:"smtp"`
}

type DatabaseConfig struct {
	Name        string `yaml:"name"`
	MySQLConfig string `yaml:"mysqlConfig"` // path to .my.cnf with a [client] section
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"` // e.g. "0 3 * * *"
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // "console", "json"
	Dir         string `yaml:"dir"`
	MaxSizeMB   int    `yaml:"maxSizeMB"`
	BackupCount int    `yaml:"backupCount"`
}

type EmailConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type S3Config struct {
	EndpointURL            string `yaml:"endpointUrl"`
	BucketName             string `yaml:"bucketName"`
	AccessKey              string `yaml:"accessKey"`
	SecretKey              string `yaml:"secretKey"`
	BackupPath             string `yaml:"backupPath"`
	MaxBackups             int    `yaml:"maxBackups"`
	DeleteLocalAfterUpload bool   `yaml:"deleteLocalAfterUpload"`
}

type S3WorkConfig struct {
	Enabled      bool   `yaml:"enabled"`
	EndpointURL  string `yaml:"endpointUrl"`
	BucketName   string `yaml:"bucketName"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	BackupFolder string `yaml:"backupFolder"`
	MaxBackups   int    `yaml:"maxBackups"`
}

type SMTPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"useTLS"`
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Validate checks the fields every run needs and fills defaults.
// Backend sections are validated lazily, when a client is requested.
func (c *Config) Validate() error {
	if c.BitrixRoot == "" {
		return errors.New("bitrixRoot is required")
	}
	if c.BackupDir == "" {
		return errors.New("backupDir is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Database.MySQLConfig == "" {
		return errors.New("database.mysqlConfig is required")
	}
	if c.StorageType == "" {
		c.StorageType = StorageLocal
	}
	if c.StorageType != StorageLocal && c.StorageType != StorageS3 {
		return fmt.Errorf("storageType must be %q or %q, got %q", StorageLocal, StorageS3, c.StorageType)
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.S3 != nil {
		if c.S3.BackupPath == "" {
			c.S3.BackupPath = "backups"
		}
		if c.S3.MaxBackups <= 0 {
			c.S3.MaxBackups = c.MaxBackups
		}
	}
	if c.S3WorkStorage != nil {
		if c.S3WorkStorage.BackupFolder == "" {
			c.S3WorkStorage.BackupFolder = "s3-work-file-storage"
		}
		if c.S3WorkStorage.MaxBackups <= 0 {
			c.S3WorkStorage.MaxBackups = 5
		}
	}
	if c.SMTP != nil && c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	return nil
}
