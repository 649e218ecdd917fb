package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	uberconfig "go.uber.org/config"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/logging"
)

// Mode selects which dataset a run synchronizes.
type Mode string

const (
	ModeCatalog     Mode = "course_catalog"
	ModeConsumption Mode = "course_consumption"
)

// Modes lists every supported run mode.
var Modes = []Mode{ModeCatalog, ModeConsumption}

// ParseMode validates a positional mode argument.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", dserrors.ConfigError{
		Field:      "mode",
		Value:      s,
		Message:    "unknown sync mode",
		Suggestion: fmt.Sprintf("Use one of: %s, %s", ModeCatalog, ModeConsumption),
	}
}

// Logical secret names the engine reads from the bundle.
const (
	SecretEdXAccessToken    = "edx_access_token"
	SecretEdXAPIKey         = "edx_api_key"
	SecretSubscriptionKey   = "landd_subscription_key"
	SecretLandDClientID     = "landd_clientid"
	SecretLandDClientSecret = "landd_clientsecret"
)

// RequiredSecrets returns the logical names a mode cannot run without.
// Both modes read the source and publish to the destination, so they share the set.
func RequiredSecrets(Mode) []string {
	return []string{
		SecretEdXAccessToken,
		SecretEdXAPIKey,
		SecretSubscriptionKey,
		SecretLandDClientID,
		SecretLandDClientSecret,
	}
}

// Mapping policies for records that lack required structure.
const (
	MappingStrict  = "strict"
	MappingLenient = "lenient"
)

// Secret store backends.
const (
	BackendREST    = "rest"
	BackendSDK     = "sdk"
	BackendKeyring = "keyring"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the landdsync.yaml structure
type Definition struct {
	General     GeneralConfig     `yaml:"general"`
	Identity    IdentityConfig    `yaml:"identity"`
	KeyVault    KeyVaultConfig    `yaml:"key_vault"`
	EdX         EdXConfig         `yaml:"edx"`
	LandD       LandDConfig       `yaml:"landd"`
	Consumption ConsumptionConfig `yaml:"consumption"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// GeneralConfig covers retry, timeout and mapping behavior shared by both modes.
type GeneralConfig struct {
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryInitialWait time.Duration `yaml:"retry_initial_wait"`
	RetryMaxWait     time.Duration `yaml:"retry_max_wait"`
	RetryJitter      bool          `yaml:"retry_jitter"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	MappingPolicy    string        `yaml:"mapping_policy"`
	MaxPages         int           `yaml:"max_pages"`
}

// IdentityConfig points at the host-local managed identity endpoint.
type IdentityConfig struct {
	Endpoint string `yaml:"endpoint"`
	Resource string `yaml:"resource"`
}

// KeyVaultConfig describes where secrets come from and how they are named.
type KeyVaultConfig struct {
	URL            string          `yaml:"url"`
	APIVersion     string          `yaml:"api_version"`
	Backend        string          `yaml:"backend"`
	KeyringService string          `yaml:"keyring_service,omitempty"`
	Secrets        []SecretBinding `yaml:"secrets"`
}

// SecretBinding maps a key vault secret name onto a logical name.
type SecretBinding struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// EdXConfig holds the source endpoints.
type EdXConfig struct {
	CatalogURL     string `yaml:"catalog_url"`
	ConsumptionURL string `yaml:"consumption_url"`
}

// LandDConfig holds the destination endpoints and OAuth authority.
type LandDConfig struct {
	AuthorityHostURL string `yaml:"authority_host_url"`
	Tenant           string `yaml:"tenant"`
	Resource         string `yaml:"resource"`
	CatalogURL       string `yaml:"catalog_url"`
	ConsumptionURL   string `yaml:"consumption_url"`
	SourceSystemID   string `yaml:"source_system_id"`
	SubmittedBy      string `yaml:"submitted_by"`
}

// ConsumptionConfig controls the incremental consumption window.
type ConsumptionConfig struct {
	CheckpointFile  string        `yaml:"checkpoint_file"`
	RetentionDelay  time.Duration `yaml:"retention_delay"`
	ExcludedDomains []string      `yaml:"excluded_domains"`
}

// MetricsConfig enables the textfile metrics sink.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Defaults.
const (
	DefaultIdentityEndpoint = "http://127.0.0.1:50342/oauth2/token"
	DefaultIdentityResource = "https://vault.azure.net"
	DefaultKeyVaultAPI      = "2016-10-01"
	DefaultAuthorityHost    = "https://login.microsoftonline.com"
	DefaultCheckpointFile   = "landdsync.checkpoint"
	DefaultKeyringService   = "landdsync"
)

var defaultExcludedDomains = []string{"@microsoft.com"}

// ApplyDefaults fills every unset field with its default value.
func (d *Definition) ApplyDefaults() {
	g := &d.General
	if g.RetryAttempts <= 0 {
		g.RetryAttempts = 3
	}
	if g.RetryInitialWait <= 0 {
		g.RetryInitialWait = 2 * time.Second
	}
	if g.RetryMaxWait <= 0 {
		g.RetryMaxWait = time.Minute
	}
	if g.HTTPTimeout <= 0 {
		g.HTTPTimeout = 30 * time.Second
	}
	if g.MappingPolicy == "" {
		g.MappingPolicy = MappingStrict
	}
	if g.MaxPages <= 0 {
		g.MaxPages = 10000
	}
	if d.Identity.Endpoint == "" {
		d.Identity.Endpoint = DefaultIdentityEndpoint
	}
	if d.Identity.Resource == "" {
		d.Identity.Resource = DefaultIdentityResource
	}
	if d.KeyVault.APIVersion == "" {
		d.KeyVault.APIVersion = DefaultKeyVaultAPI
	}
	if d.KeyVault.Backend == "" {
		d.KeyVault.Backend = BackendREST
	}
	if d.KeyVault.KeyringService == "" {
		d.KeyVault.KeyringService = DefaultKeyringService
	}
	if d.LandD.AuthorityHostURL == "" {
		d.LandD.AuthorityHostURL = DefaultAuthorityHost
	}
	if d.Consumption.CheckpointFile == "" {
		d.Consumption.CheckpointFile = DefaultCheckpointFile
	}
	if d.Consumption.ExcludedDomains == nil {
		d.Consumption.ExcludedDomains = append([]string(nil), defaultExcludedDomains...)
	}
}

// Load reads and parses the landdsync.yaml file. ${VAR} references are
// expanded from the process environment.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Run 'landdsync init' to create a new configuration file",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse decodes a YAML document into a Definition with defaults applied.
func Parse(data []byte) (*Definition, error) {
	provider, err := uberconfig.NewYAML(
		uberconfig.Source(bytes.NewReader(data)),
		uberconfig.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or unset ${VARIABLES}",
		}
	}

	var def Definition
	if err := provider.Get(uberconfig.Root).Populate(&def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("cannot decode configuration: %v", err),
			Suggestion: "Durations use Go syntax such as 30s or 15m",
		}
	}
	def.ApplyDefaults()
	return &def, nil
}

// Validate checks everything a run in the given mode depends on.
func (d *Definition) Validate(mode Mode) error {
	if d.General.MappingPolicy != MappingStrict && d.General.MappingPolicy != MappingLenient {
		return dserrors.ConfigError{
			Field:      "general.mapping_policy",
			Value:      d.General.MappingPolicy,
			Message:    "unknown mapping policy",
			Suggestion: "Use 'strict' or 'lenient'",
		}
	}
	if d.General.RetryMaxWait < d.General.RetryInitialWait {
		return dserrors.ConfigError{
			Field:      "general.retry_max_wait",
			Value:      d.General.RetryMaxWait,
			Message:    "must not be shorter than retry_initial_wait",
			Suggestion: fmt.Sprintf("Set it to at least %s", d.General.RetryInitialWait),
		}
	}

	switch d.KeyVault.Backend {
	case BackendREST, BackendSDK:
		if err := requireURL("key_vault.url", d.KeyVault.URL); err != nil {
			return err
		}
		if err := requireURL("identity.endpoint", d.Identity.Endpoint); err != nil {
			return err
		}
	case BackendKeyring:
	default:
		return dserrors.ConfigError{
			Field:      "key_vault.backend",
			Value:      d.KeyVault.Backend,
			Message:    "unknown secret backend",
			Suggestion: "Use 'rest', 'sdk' or 'keyring'",
		}
	}

	bound := make(map[string]bool, len(d.KeyVault.Secrets))
	for i, b := range d.KeyVault.Secrets {
		if b.Key == "" || b.Name == "" {
			return dserrors.ConfigError{
				Field:      fmt.Sprintf("key_vault.secrets[%d]", i),
				Message:    "both key and name are required",
				Suggestion: "Each entry maps a vault secret to a logical name, e.g. {key: edx-api-key, name: edx_api_key}",
			}
		}
		bound[b.Name] = true
	}
	var missing []string
	for _, name := range RequiredSecrets(mode) {
		if !bound[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return dserrors.ConfigError{
			Field:      "key_vault.secrets",
			Message:    fmt.Sprintf("no binding for %s", strings.Join(missing, ", ")),
			Suggestion: "Add a key_vault.secrets entry for every logical secret name",
		}
	}

	if err := requireURL("landd.authority_host_url", d.LandD.AuthorityHostURL); err != nil {
		return err
	}
	if d.LandD.Tenant == "" {
		return required("landd.tenant", "The AAD tenant id, or 'adfs'")
	}
	if d.LandD.Resource == "" {
		return required("landd.resource", "The App ID URI of the L&D API")
	}
	if d.LandD.SourceSystemID == "" {
		return required("landd.source_system_id", "The source system id assigned by L&D")
	}

	switch mode {
	case ModeCatalog:
		if err := requireURL("edx.catalog_url", d.EdX.CatalogURL); err != nil {
			return err
		}
		return requireURL("landd.catalog_url", d.LandD.CatalogURL)
	case ModeConsumption:
		if err := requireURL("edx.consumption_url", d.EdX.ConsumptionURL); err != nil {
			return err
		}
		if err := requireURL("landd.consumption_url", d.LandD.ConsumptionURL); err != nil {
			return err
		}
		if d.LandD.SubmittedBy == "" {
			return required("landd.submitted_by", "The account recorded as submitter of consumption records")
		}
		if d.Consumption.RetentionDelay < 0 {
			return dserrors.ConfigError{
				Field:   "consumption.retention_delay",
				Value:   d.Consumption.RetentionDelay,
				Message: "must not be negative",
			}
		}
		return nil
	default:
		_, err := ParseMode(string(mode))
		return err
	}
}

func required(field, suggestion string) error {
	return dserrors.ConfigError{
		Field:      field,
		Message:    "required",
		Suggestion: suggestion,
	}
}

func requireURL(field, value string) error {
	if value == "" {
		return required(field, "Provide an absolute http(s) URL")
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dserrors.ConfigError{
			Field:      field,
			Value:      value,
			Message:    "must be an absolute http(s) URL",
			Suggestion: "Use format: https://hostname/path",
		}
	}
	return nil
}

// Sample returns a starter definition for 'landdsync init'.
func Sample() *Definition {
	def := &Definition{
		KeyVault: KeyVaultConfig{
			URL: "https://my-vault.vault.azure.net",
			Secrets: []SecretBinding{
				{Key: "edx-access-token", Name: SecretEdXAccessToken},
				{Key: "edx-api-key", Name: SecretEdXAPIKey},
				{Key: "landd-subscription-key", Name: SecretSubscriptionKey},
				{Key: "landd-client-id", Name: SecretLandDClientID},
				{Key: "landd-client-secret", Name: SecretLandDClientSecret},
			},
		},
		EdX: EdXConfig{
			CatalogURL:     "https://lms.example.com/api/courses/v1/courses/?page_size=100",
			ConsumptionURL: "https://lms.example.com/api/grades/v1/gradebook/?page_size=100",
		},
		LandD: LandDConfig{
			Tenant:         "00000000-0000-0000-0000-000000000000",
			Resource:       "https://landd.example.com",
			CatalogURL:     "https://api.landd.example.com/catalog",
			ConsumptionURL: "https://api.landd.example.com/consumption",
			SourceSystemID: "0",
			SubmittedBy:    "sync@example.com",
		},
		Consumption: ConsumptionConfig{
			RetentionDelay: 30 * time.Minute,
		},
	}
	def.ApplyDefaults()
	return def
}

// Marshal renders a definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
