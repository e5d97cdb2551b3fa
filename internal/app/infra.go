package app

import (
	"context"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/segmentio/kafka-go"
	"github.com/shandysiswandi/otpgate/internal/pkg/certkey"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/rsakey"
	"github.com/shandysiswandi/otpgate/internal/pkg/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
	privateKeyMaxBytes = 64 << 10
)

// googleOptions reads Google client settings under prefix, e.g.
// "storage.gcs". Credentials come from a file path or base64 JSON; without
// either the default application credentials apply.
func (a *App) googleOptions(prefix, scope string) []option.ClientOption {
	key := func(name string) string { return prefix + "." + name }

	var opts []option.ClientOption
	if a.config.GetBool(key("without_auth")) {
		opts = append(opts, option.WithoutAuthentication())
	}

	credsJSON := a.config.GetBinary(key("credentials_json"))
	if path := strings.TrimSpace(a.config.GetString(key("credentials_file"))); path != "" {
		// #nosec G304 -- operator supplied path
		raw, err := os.ReadFile(path)
		if err != nil {
			fatal("failed to read google credentials", err, "prefix", prefix)
		}
		credsJSON = raw
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, scope)
		if err != nil {
			fatal("invalid google credentials", err, "prefix", prefix)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if v := strings.TrimSpace(a.config.GetString(key("endpoint"))); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}
	if v := strings.TrimSpace(a.config.GetString(key("user_agent"))); v != "" {
		opts = append(opts, option.WithUserAgent(v))
	}
	return opts
}

// initStorage opens the blob store the DSKPP private key may live in.
func (a *App) initStorage() {
	str := func(k string) string { return strings.TrimSpace(a.config.GetString("storage." + k)) }
	driver := str("driver")

	opts := storage.FactoryOptions{
		File: storage.FileOptions{Root: str("file.root")},
		S3: storage.S3Options{
			Region:       str("s3.region"),
			Endpoint:     str("s3.endpoint"),
			AccessKey:    str("s3.access_key"),
			SecretKey:    str("s3.secret_key"),
			SessionToken: str("s3.session_token"),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		MinIO: storage.MinIOOptions{
			Region:       str("minio.region"),
			Endpoint:     str("minio.endpoint"),
			AccessKey:    str("minio.access_key"),
			SecretKey:    str("minio.secret_key"),
			SessionToken: str("minio.session_token"),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
	}
	if driver == storage.DriverGCS {
		opts.GCS.ClientOptions = a.googleOptions("storage.gcs", gcs.ScopeReadOnly)
	}

	s, err := storage.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		fatal("failed to init storage", err, "driver", driver)
	}

	a.storage = s
	a.onClose("storage", func(context.Context) error { return s.Close() })
}

// initMessaging opens the broker push notifications go to.
func (a *App) initMessaging() {
	sec := func(k string) string { return "messaging." + k }
	driver := strings.TrimSpace(a.config.GetString(sec("driver")))

	nsqConf := nsq.NewConfig()
	nsqConf.MaxInFlight = max(a.config.GetInt(sec("nsq.producer_config.max_in_flight")), 1)
	if d := a.config.GetSecond(sec("nsq.producer_config.dial_timeout_seconds")); d > 0 {
		nsqConf.DialTimeout = d
	}
	if d := a.config.GetSecond(sec("nsq.producer_config.write_timeout_seconds")); d > 0 {
		nsqConf.WriteTimeout = d
	}

	opts := messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:   a.config.GetString(sec("nsq.producer_addr")),
			ProducerConfig: nsqConf,
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray(sec("kafka.brokers")),
			Dialer: &kafka.Dialer{
				ClientID:  a.config.GetString(sec("kafka.client_id")),
				Timeout:   a.config.GetSecond(sec("kafka.dial_timeout_seconds")),
				DualStack: true,
			},
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString(sec("nats.url")),
			Options: []nats.Option{
				nats.Name(a.config.GetString(sec("nats.name"))),
				nats.MaxReconnects(a.config.GetInt(sec("nats.max_reconnects"))),
				nats.Timeout(a.config.GetSecond(sec("nats.timeout_seconds"))),
				nats.ReconnectWait(a.config.GetSecond(sec("nats.reconnect_wait_seconds"))),
				nats.RetryOnFailedConnect(a.config.GetBool(sec("nats.retry_on_failed_connect"))),
			},
		},
		PubSub: messaging.PubSubConfig{ProjectID: a.config.GetString(sec("pubsub.project_id"))},
	}
	if driver == messaging.DriverGooglePubSub {
		opts.PubSub.ClientOptions = a.googleOptions(sec("pubsub"), scopeCloudPlatform)
	}

	pub, err := messaging.NewFromDriver(a.ctx, driver, opts)
	if err != nil {
		fatal("failed to init messaging", err, "driver", driver)
	}

	a.messaging = pub
	a.onClose("messaging", func(context.Context) error { return pub.Close() })
}

// initCrypto loads the RSA key that decrypts DSKPP client nonces, inline from
// crypto.private_key.pem or from storage, and the certificate modulus
// fetcher. Skipped while the dskpp module is off.
func (a *App) initCrypto() {
	if !a.config.GetBool("modules.dskpp.enabled") {
		return
	}

	pemBytes := a.config.GetBinary("crypto.private_key.pem")
	if len(pemBytes) == 0 {
		bucket := strings.TrimSpace(a.config.GetString("crypto.private_key.bucket"))
		object := strings.TrimSpace(a.config.GetString("crypto.private_key.object"))

		raw, err := storage.ReadAll(a.ctx, a.storage, bucket, object, privateKeyMaxBytes)
		if err != nil {
			fatal("failed to read private key", err, "bucket", bucket, "object", object)
		}
		pemBytes = raw
	}

	dec, err := rsakey.NewDecrypter(pemBytes, a.config.GetString("crypto.private_key.passphrase"))
	if err != nil {
		fatal("failed to load private key", err)
	}

	a.decrypter = dec
	a.keyDeriver = certkey.NewDeriver(certkey.NewFetcher(certkey.Config{
		Cache:   a.cache,
		Clock:   a.clock,
		Timeout: a.config.GetSecond("certkey.timeout_seconds"),
		Port:    a.config.GetString("certkey.port"),
	}))
}
