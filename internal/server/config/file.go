package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/wopihost/internal/flagx"
	"github.com/dmitrijs2005/wopihost/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// they can be written as "30m" or as integer nanoseconds. Keys missing from
// the file keep their previous value.
type FileConfig struct {
	HTTPAddr           string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr" yaml:"grpc_addr"`
	Backend            string         `json:"backend" yaml:"backend"`
	Store              string         `json:"store" yaml:"store"`
	DatabaseDSN        string         `json:"database_dsn" yaml:"database_dsn"`
	BadgerPath         string         `json:"badger_path" yaml:"badger_path"`
	SecretKey          string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenTTL     timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	LockTTL            timex.Duration `json:"lock_ttl" yaml:"lock_ttl"`
	TokenPurgeInterval timex.Duration `json:"token_purge_interval" yaml:"token_purge_interval"`
	S3AccessKey        string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region           string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	EditorURL          string         `json:"editor_url" yaml:"editor_url"`
	PublicURL          string         `json:"public_url" yaml:"public_url"`
	IdentityHeader     string         `json:"identity_header" yaml:"identity_header"`
	AdminUsers         []string       `json:"admin_users" yaml:"admin_users"`
	LogLevel           string         `json:"log_level" yaml:"log_level"`
	MaxUploadBytes     int64          `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	KeepAuto           int            `json:"keep_auto" yaml:"keep_auto"`
	KeepExplicit       int            `json:"keep_explicit" yaml:"keep_explicit"`
	UI                 UIConfig       `json:"ui" yaml:"ui"`
}

// parseFile overlays the file named by -c/-config (or $WOPIHOST_CONFIG).
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
func parseFile(config *Config) error {
	path := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toFile(config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fromFile(c, config)
	return nil
}

func toFile(c *Config) *FileConfig {
	return &FileConfig{
		HTTPAddr:           c.HTTPAddr,
		GRPCAddr:           c.GRPCAddr,
		Backend:            c.Backend,
		Store:              c.Store,
		DatabaseDSN:        c.DatabaseDSN,
		BadgerPath:         c.BadgerPath,
		SecretKey:          c.SecretKey,
		AccessTokenTTL:     timex.Duration{Duration: c.AccessTokenTTL},
		LockTTL:            timex.Duration{Duration: c.LockTTL},
		TokenPurgeInterval: timex.Duration{Duration: c.TokenPurgeInterval},
		S3AccessKey:        c.S3AccessKey,
		S3SecretKey:        c.S3SecretKey,
		S3Bucket:           c.S3Bucket,
		S3Region:           c.S3Region,
		S3BaseEndpoint:     c.S3BaseEndpoint,
		EditorURL:          c.EditorURL,
		PublicURL:          c.PublicURL,
		IdentityHeader:     c.IdentityHeader,
		AdminUsers:         c.AdminUsers,
		LogLevel:           c.LogLevel,
		MaxUploadBytes:     c.MaxUploadBytes,
		KeepAuto:           c.KeepAuto,
		KeepExplicit:       c.KeepExplicit,
		UI:                 c.UI,
	}
}

func fromFile(f *FileConfig, c *Config) {
	c.HTTPAddr = f.HTTPAddr
	c.GRPCAddr = f.GRPCAddr
	c.Backend = f.Backend
	c.Store = f.Store
	c.DatabaseDSN = f.DatabaseDSN
	c.BadgerPath = f.BadgerPath
	c.SecretKey = f.SecretKey
	c.AccessTokenTTL = f.AccessTokenTTL.Duration
	c.LockTTL = f.LockTTL.Duration
	c.TokenPurgeInterval = f.TokenPurgeInterval.Duration
	c.S3AccessKey = f.S3AccessKey
	c.S3SecretKey = f.S3SecretKey
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.EditorURL = f.EditorURL
	c.PublicURL = f.PublicURL
	c.IdentityHeader = f.IdentityHeader
	c.AdminUsers = f.AdminUsers
	c.LogLevel = f.LogLevel
	c.MaxUploadBytes = f.MaxUploadBytes
	c.KeepAuto = f.KeepAuto
	c.KeepExplicit = f.KeepExplicit
	c.UI = f.UI
}
