package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// security resolves the optional TLS and SASL settings. Either may be nil.
func security(cfg *Config) (*tls.Config, sasl.Mechanism, error) {
	var (
		tc *tls.Config
		m  sasl.Mechanism
	)
	if cfg.EnableTLS {
		var err error
		if tc, err = tlsConfig(cfg); err != nil {
			return nil, nil, fmt.Errorf("kafka tls: %w", err)
		}
	}
	if cfg.EnableSASL {
		var err error
		if m, err = saslMechanism(cfg); err != nil {
			return nil, nil, fmt.Errorf("kafka sasl: %w", err)
		}
	}
	return tc, m, nil
}

// CreateTransport builds the writer transport.
func CreateTransport(cfg *Config) (*kafkago.Transport, error) {
	tc, m, err := security(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Transport{
		DialTimeout: ParseDuration(cfg.DialTimeout),
		IdleTimeout: ParseDuration(cfg.IdleTimeout),
		MetadataTTL: ParseDuration(cfg.MetadataTTL),
		TLS:         tc,
		SASL:        m,
	}, nil
}

// CreateDialer builds the dialer used by the health probe.
func CreateDialer(cfg *Config) (*kafkago.Dialer, error) {
	tc, m, err := security(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Dialer{
		Timeout:       ParseDuration(cfg.DialTimeout),
		DualStack:     true,
		TLS:           tc,
		SASLMechanism: m,
	}, nil
}

func tlsConfig(cfg *Config) (*tls.Config, error) {
	tc := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.TLSCAFile)
		}
		tc.RootCAs = pool
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
	}
}

// ResolveCompression maps a codec name to kafka-go. Unknown names and "none"
// disable compression.
func ResolveCompression(name string) kafkago.Compression {
	switch name {
	case "gzip":
		return kafkago.Gzip
	case "snappy":
		return kafkago.Snappy
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	default:
		return 0
	}
}
