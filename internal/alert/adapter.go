package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedChannel is returned by the factory for unknown channel
// types. This is the only construction-time failure; delivery failures are
// ordinary errors from Send.
var ErrUnsupportedChannel = errors.New("unsupported notification channel type")

// Adapter delivers one message to one external channel. Config is the
// channel's opaque JSON blob, interpreted per adapter.
type Adapter interface {
	Send(ctx context.Context, message string, config json.RawMessage) error
}

// AdapterFactory resolves a channel type string to an adapter.
type AdapterFactory func(channelType string) (Adapter, error)

// FactoryOptions carry process-level adapter settings that are not part of
// any single channel's config blob.
type FactoryOptions struct {
	SMSGatewayURL string
}

// NewFactory builds the default adapter factory.
func NewFactory(opts FactoryOptions) AdapterFactory {
	return func(channelType string) (Adapter, error) {
		switch strings.ToLower(channelType) {
		case "slack":
			return newSlackAdapter(), nil
		case "email":
			return newEmailAdapter(), nil
		case "sms":
			return newSMSAdapter(opts.SMSGatewayURL), nil
		case "log", "file":
			return newLogAdapter(), nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channelType)
		}
	}
}

// NewAdapter is the factory with default options.
var NewAdapter = NewFactory(FactoryOptions{})
