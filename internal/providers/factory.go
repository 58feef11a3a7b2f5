package providers

import (
	"fmt"

	"pasteup/internal/config"
	"pasteup/internal/security"
	"pasteup/pkg/uploader"
)

// FromConfig resolves and configures the provider named by the config's
// uploader strategy. It returns uploader.ErrNotConfigured when the
// strategy is empty or "none" and unseals the credential when the config
// marks it sealed.
func FromConfig(cfg *config.Config) (uploader.Uploader, error) {
	settings := cfg.UploaderSettings()

	switch settings.Strategy {
	case "", "none":
		return nil, uploader.ErrNotConfigured
	}

	// Built-ins are constructed fresh so that reconfiguration never
	// mutates a provider an in-flight upload is still using.
	p := newProvider(settings.Strategy)
	if p == nil {
		shared, ok := uploader.Get(settings.Strategy)
		if !ok {
			return nil, fmt.Errorf("%w: %s", uploader.ErrUnknownProvider, settings.Strategy)
		}
		p = shared
	}

	credential := settings.Credential
	if settings.CredentialSealed && credential != "" {
		key, err := security.LoadMachineKey(config.MachineKeyPath())
		if err != nil {
			return nil, fmt.Errorf("load machine key: %w", err)
		}
		credential, err = security.Open(key, credential)
		if err != nil {
			return nil, fmt.Errorf("unseal credential: %w", err)
		}
	}

	providerCfg := map[string]interface{}{
		"timeout_sec":   settings.TimeoutSec,
		"max_upload_mb": settings.MaxUploadMB,
	}
	if settings.ClientID != "" {
		providerCfg["client_id"] = settings.ClientID
	}
	if credential != "" {
		// Providers read the credential under their own key.
		providerCfg["access_token"] = credential
		providerCfg["userhash"] = credential
	}
	if settings.SpecPath != "" {
		providerCfg["spec_path"] = settings.SpecPath
	}

	if err := p.Configure(providerCfg); err != nil {
		return nil, err
	}
	return p, nil
}

// newProvider returns a fresh instance of a built-in provider, or nil
// for names only the registry knows.
func newProvider(name string) uploader.Uploader {
	switch name {
	case "imgur":
		return NewImgur()
	case "catbox":
		return NewCatbox()
	case "custom":
		return NewCustom()
	default:
		return nil
	}
}
