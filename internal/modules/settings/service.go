package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"paybridge/internal/domain"
	"paybridge/internal/pkg/pesepay"
)

type settingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Defaults come from the environment and apply until a merchant saves a value.
type Defaults struct {
	IntegrationKey string
	EncryptionKey  string
	Debug          bool
}

type Service struct {
	store    settingStore
	defaults Defaults
}

func NewService(store settingStore, defaults Defaults) *Service {
	return &Service{store: store, defaults: defaults}
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	if ok {
		return v, nil
	}
	switch key {
	case domain.SettingIntegrationKey:
		return s.defaults.IntegrationKey, nil
	case domain.SettingEncryptionKey:
		return s.defaults.EncryptionKey, nil
	case domain.SettingDebug:
		return strconv.FormatBool(s.defaults.Debug), nil
	}
	return "", nil
}

// Credentials satisfies the gateway client's key source.
func (s *Service) Credentials(ctx context.Context) (pesepay.Credentials, error) {
	integrationKey, err := s.Get(ctx, domain.SettingIntegrationKey)
	if err != nil {
		return pesepay.Credentials{}, err
	}
	encryptionKey, err := s.Get(ctx, domain.SettingEncryptionKey)
	if err != nil {
		return pesepay.Credentials{}, err
	}
	return pesepay.Credentials{IntegrationKey: integrationKey, EncryptionKey: encryptionKey}, nil
}

// DebugEnabled never fails; a read error disables debug output.
func (s *Service) DebugEnabled(ctx context.Context) bool {
	v, err := s.Get(ctx, domain.SettingDebug)
	if err != nil {
		return false
	}
	return parseBool(v)
}

func (s *Service) View(ctx context.Context) (*View, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return &View{
		IntegrationKey: mask(creds.IntegrationKey),
		EncryptionKey:  mask(creds.EncryptionKey),
		Debug:          s.DebugEnabled(ctx),
	}, nil
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) error {
	if req.IntegrationKey != nil {
		if err := s.store.Set(ctx, domain.SettingIntegrationKey, strings.TrimSpace(*req.IntegrationKey)); err != nil {
			return err
		}
	}
	if req.EncryptionKey != nil {
		key := strings.TrimSpace(*req.EncryptionKey)
		if key != "" && len(key) < 16 {
			return ErrEncryptionKeyTooShort
		}
		if err := s.store.Set(ctx, domain.SettingEncryptionKey, key); err != nil {
			return err
		}
	}
	if req.Debug != nil {
		if err := s.store.Set(ctx, domain.SettingDebug, strconv.FormatBool(*req.Debug)); err != nil {
			return err
		}
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
