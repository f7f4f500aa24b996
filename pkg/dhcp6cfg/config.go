// Package dhcp6cfg loads the client's process-wide configuration knobs
// from a YAML file: read the file, unmarshal into a plain struct, then
// validate and fill in defaults.
package dhcp6cfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/client"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/duid"
	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/option"
)

// Config holds the process-wide knobs controlling address allocation,
// identity, and wake handling, plus the interface this process manages.
type Config struct {
	Interface        string   `yaml:"interface"`
	AllocateAddress  bool     `yaml:"allocate_address"`
	PrivacyRequired  bool     `yaml:"privacy_required"`
	RequestedOptions []string `yaml:"requested_options"`
	DUIDType         string   `yaml:"duid_type"`
	WakeSkewSecs     uint32   `yaml:"wake_skew_secs"`
}

// optionNames maps the YAML requested_options entries onto option.Code
// values; extend as new options become relevant to requested-options
// overrides.
var optionNames = map[string]option.Code{
	"dns_servers":             option.OptDNSServers,
	"domain_list":             option.OptDomainList,
	"captive_portal_url":      option.OptCaptivePortalURL,
	"sntp_servers":            option.OptSNTPServers,
	"ntp_server":              option.OptNTPServer,
	"nis_servers":             option.OptNISServers,
	"nis_domain_name":         option.OptNISDomainName,
	"information_refresh_time": option.OptInformationRefreshTime,
}

var duidTypeNames = map[string]duid.Type{
	"llt":  duid.LLT,
	"en":   duid.EN,
	"ll":   duid.LL,
	"uuid": duid.UUID,
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("dhcp6cfg: %w", err)
	}
	cfg := Config{DUIDType: "ll"}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dhcp6cfg: parse %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Interface == "" {
		return fmt.Errorf("dhcp6cfg: interface is required")
	}
	if _, ok := duidTypeNames[cfg.DUIDType]; !ok {
		return fmt.Errorf("dhcp6cfg: unknown duid_type %q", cfg.DUIDType)
	}
	for _, name := range cfg.RequestedOptions {
		if _, ok := optionNames[name]; !ok {
			return fmt.Errorf("dhcp6cfg: unknown requested_options entry %q", name)
		}
	}
	return nil
}

// Mode returns the client.Mode implied by AllocateAddress.
func (c Config) Mode() client.Mode {
	if c.AllocateAddress {
		return client.ModeStateful
	}
	return client.ModeStateless
}

// DUIDTypeValue resolves the configured duid_type name, defaulting to
// duid.LL if unset (Load always validates it's a known name first).
func (c Config) DUIDTypeValue() duid.Type {
	if t, ok := duidTypeNames[c.DUIDType]; ok {
		return t
	}
	return duid.LL
}

// RequestedOptionCodes resolves the configured requested_options override,
// or client.DefaultRequestedOptions if none was given.
func (c Config) RequestedOptionCodes() []option.Code {
	if len(c.RequestedOptions) == 0 {
		return client.DefaultRequestedOptions
	}
	codes := make([]option.Code, 0, len(c.RequestedOptions))
	for _, name := range c.RequestedOptions {
		codes = append(codes, optionNames[name])
	}
	return codes
}
