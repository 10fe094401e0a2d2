package gmail

// Config holds Gmail API provider configuration for a service account with
// domain-wide delegation.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	CredentialsJSON string `env:"GMAIL_CREDENTIALS_JSON"` // Service account key
	SenderAddress   string `env:"GMAIL_SENDER_ADDRESS"`   // Mailbox to send as
	SenderName      string `env:"GMAIL_SENDER_NAME"`
}

// TokenConfig holds Gmail API provider configuration for an OAuth2 client
// with a refresh token for the sender mailbox.
type TokenConfig struct {
	ClientID      string `env:"GMAIL_CLIENT_ID"`
	ClientSecret  string `env:"GMAIL_CLIENT_SECRET"`
	RefreshToken  string `env:"GMAIL_REFRESH_TOKEN"`
	SenderAddress string `env:"GMAIL_SENDER_ADDRESS"`
	SenderName    string `env:"GMAIL_SENDER_NAME"`
}
