package privacy

// DefaultPatterns returns the built-in high-precision credential patterns
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:    "Anthropic API Key",
			Pattern: `sk-ant-[A-Za-z0-9]{2,8}-[A-Za-z0-9_-]{20,}`,
			Type:    "api_key",
		},
		{
			Name:    "OpenAI API Key",
			Pattern: `sk-(?:proj-)?[A-Za-z0-9_-]{40,}`,
			Type:    "api_key",
		},
		{
			Name:    "AWS Access Key",
			Pattern: `AKIA[0-9A-Z]{16}`,
			Type:    "aws_key",
		},
		{
			Name:         "AWS Secret Key",
			Pattern:      `(?i)aws_secret_access_key\s*[=:]\s*["']?([A-Za-z0-9/+=]{40})`,
			Type:         "aws_secret",
			CaptureGroup: 1,
		},
		{
			Name:    "GitHub Token",
			Pattern: `gh[pousr]_[A-Za-z0-9]{36}`,
			Type:    "github_token",
		},
		{
			Name:    "GitHub Fine-Grained Token",
			Pattern: `github_pat_[A-Za-z0-9_]{22,}`,
			Type:    "github_token",
		},
		{
			Name:    "JWT Token",
			Pattern: `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
			Type:    "jwt",
		},
		{
			Name:    "Private Key Block",
			Pattern: `(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?(?:-----END [A-Z ]*PRIVATE KEY-----|$)`,
			Type:    "private_key",
		},
		{
			Name:         "Connection String Password",
			Pattern:      `((?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^:/@\s]*:)([^@\s]+)(@[^\s]+)`,
			Type:         "password",
			CaptureGroup: 2,
		},
		{
			Name:         "Generic URL Password",
			Pattern:      `(://[^:/@\s]+:)([^@\s]+)(@)`,
			Type:         "password",
			CaptureGroup: 2,
		},
		{
			Name:         "Bearer Token",
			Pattern:      `(?i)(authorization:\s*bearer\s+|bearer\s+)([A-Za-z0-9._~+/=-]{20,})`,
			Type:         "bearer_token",
			CaptureGroup: 2,
		},
		{
			Name:         "Assigned Secret",
			Pattern:      `(?i)\b(?:api[_-]?key|secret|token|password|passwd)\b\s*[=:]\s*["']?([^\s"'\[][^\s"']{7,})`,
			Type:         "secret",
			CaptureGroup: 1,
		},
		{
			Name:    "Slack Token",
			Pattern: `xox[baprs]-[0-9a-zA-Z-]{10,72}`,
			Type:    "slack_token",
		},
		{
			Name:    "Stripe Live API Key",
			Pattern: `[sr]k_live_[0-9a-zA-Z]{24,}`,
			Type:    "stripe_key",
		},
		{
			Name:    "Google API Key",
			Pattern: `AIza[0-9A-Za-z_-]{35}`,
			Type:    "google_api_key",
		},
		{
			Name:    "SendGrid API Key",
			Pattern: `SG\.[A-Za-z0-9_-]{22}\.[A-Za-z0-9_-]{43}`,
			Type:    "sendgrid_key",
		},
		{
			Name:    "npm Access Token",
			Pattern: `npm_[A-Za-z0-9]{36}`,
			Type:    "npm_token",
		},
		{
			Name:    "PyPI Token",
			Pattern: `pypi-AgEIcHlwaS5vcmc[A-Za-z0-9_-]{70,}`,
			Type:    "pypi_token",
		},
	}
}
