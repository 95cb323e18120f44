package wallet

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Settings represents operator-level wallet tuning from the server config.
type Settings struct {
	TimeoutSec       int `yaml:"timeout_sec" mapstructure:"timeout_sec" default:"10" validate:"gte=1,lte=60"`
	InvoiceExpirySec int `yaml:"invoice_expiry_sec" mapstructure:"invoice_expiry_sec" default:"600" validate:"gte=60"`
}

// ParseSettings decodes and validates wallet settings from a config map.
func ParseSettings(raw map[string]any) (*Settings, error) {
	var s Settings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &s,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode wallet settings")
	}

	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return nil, errors.Wrap(err, "wallet settings validation failed")
	}
	return &s, nil
}

// ParseConnection parses a host-presented wallet connection string of the
// form lnbits://host[:port]?key=<api-key> into an LNbits configuration.
func ParseConnection(conn string, settings *Settings) (*LNBitsConfig, error) {
	u, err := url.Parse(conn)
	if err != nil {
		return nil, errors.Wrap(err, "malformed wallet connection string")
	}
	if u.Scheme != "lnbits" {
		return nil, errors.Newf("unsupported wallet scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("wallet connection is missing a host")
	}

	key := u.Query().Get("key")
	if key == "" {
		return nil, errors.New("wallet connection is missing an api key")
	}

	return &LNBitsConfig{
		BaseURL: "https://" + u.Host,
		APIKey:  key,
		Expiry:  time.Duration(settings.InvoiceExpirySec) * time.Second,
		Timeout: time.Duration(settings.TimeoutSec) * time.Second,
	}, nil
}

// Connect creates a wallet client from a connection string and validates it
// by fetching wallet info. The returned client is ready to issue invoices.
func Connect(ctx context.Context, conn string, settings *Settings) (Client, error) {
	cfg, err := ParseConnection(conn, settings)
	if err != nil {
		return nil, err
	}

	client, err := NewLNBits(*cfg)
	if err != nil {
		return nil, err
	}

	info, err := client.GetInfo(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "wallet validation failed")
	}
	zlog.Info().Msgf("wallet connected: name=%s", info.Name)

	return client, nil
}
