package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   websocket/HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      token validity, hours
//	-w int      authentication timeout, seconds
//	-m int      maximum failed login attempts per connection
//	-v string   protocol version
//	-l int      maximum chat message length, bytes
//	-A string   comma-separated admin usernames
//
// Args are filtered through flagx.FilterArgs first so that -c/-config and
// unrelated flags do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-t", "-w", "-m", "-v", "-l", "-A"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrWS, "a", config.EndpointAddrWS, "websocket address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "grpc health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token_validity_duration (in hours)")
	authTimeout := fs.Int("w", int(config.AuthTimeout.Seconds()), "auth_timeout (in seconds)")

	fs.IntVar(&config.MaxLoginAttempts, "m", config.MaxLoginAttempts, "max failed login attempts")
	fs.StringVar(&config.ProtocolVersion, "v", config.ProtocolVersion, "protocol version")
	fs.IntVar(&config.MaxMessageLength, "l", config.MaxMessageLength, "max message length (in bytes)")
	admins := fs.String("A", strings.Join(config.Admins, ","), "admin usernames, comma-separated")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
	config.AuthTimeout = time.Duration(*authTimeout) * time.Second

	if *admins != "" {
		config.Admins = splitList(*admins)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
