package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/clinic-autoresponder/internal/config"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging/whatsappclient"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// BuildDispatcher creates the WhatsApp reply dispatcher. It returns nil with a
// reason when credentials are missing.
func BuildDispatcher(cfg *appconfig.Config, observer messaging.SendObserver, logger *logging.Logger) (*messaging.Dispatcher, string, error) {
	if cfg == nil {
		return nil, "missing config", nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WhatsAppAPIKey == "" || cfg.WhatsAppPhoneNumberID == "" {
		return nil, "WHATSAPP_API_KEY and WHATSAPP_PHONE_NUMBER_ID not set", nil
	}
	client, err := whatsappclient.New(whatsappclient.Config{
		BaseURL:       cfg.WhatsAppAPIBaseURL,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		APIKey:        cfg.WhatsAppAPIKey,
		AppSecret:     cfg.WhatsAppAppSecret,
		Timeout:       cfg.WhatsAppTimeout,
		Logger:        logger.Logger,
	})
	if err != nil {
		return nil, "", fmt.Errorf("bootstrap: whatsapp client: %w", err)
	}
	return messaging.NewDispatcher(client, cfg.WhatsAppTimeout, observer, logger), "", nil
}
