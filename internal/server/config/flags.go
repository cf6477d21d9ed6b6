package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        HTTP bind address (e.g., ":8080")
//	-g string        gRPC admin bind address (e.g., ":50051")
//	-d string        PostgreSQL DSN
//	-s string        root secret for token signing keys
//	-t int           access token TTL, minutes
//	-l int           lock TTL, minutes
//	-backend string  content backend: memory | postgres
//	-store string    token and lock store: memory | postgres | badger
//	-badger string   BadgerDB directory
//	-editor string   editor base URL (discovery)
//	-public string   public URL of this host (WOPISrc)
//	-admins string   comma separated admin identities
//	-log string      log level
//	-b string        S3 bucket
//	-e string        S3 base endpoint
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so the -c/-config flag is left to parseFile.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-g", "-d", "-s", "-t", "-l", "-backend", "-store", "-badger",
		"-editor", "-public", "-admins", "-log", "-b", "-e",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC admin address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token TTL (in minutes)")
	lockTTL := fs.Int("l", int(config.LockTTL.Minutes()), "lock TTL (in minutes)")

	fs.StringVar(&config.Backend, "backend", config.Backend, "content backend (memory, postgres)")
	fs.StringVar(&config.Store, "store", config.Store, "token and lock store (memory, postgres, badger)")
	fs.StringVar(&config.BadgerPath, "badger", config.BadgerPath, "BadgerDB directory")
	fs.StringVar(&config.EditorURL, "editor", config.EditorURL, "editor base URL")
	fs.StringVar(&config.PublicURL, "public", config.PublicURL, "public URL of this host")
	admins := fs.String("admins", strings.Join(config.AdminUsers, ","), "comma separated admin identities")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// minute flags only override when given, so finer file values survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenTTL = time.Duration(*accessTokenTTL) * time.Minute
		case "l":
			config.LockTTL = time.Duration(*lockTTL) * time.Minute
		case "admins":
			config.AdminUsers = splitList(*admins)
		}
	})
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
