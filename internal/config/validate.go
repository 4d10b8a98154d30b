package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrMissingBrokerKeys = errors.New("alpaca key_id and secret_key are required when trading.dry_run is false")

// Validate checks struct tags and the cross-field rules viper cannot express.
// A failure here is fatal at startup.
func Validate(cfg Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}
	if !cfg.Trading.DryRun {
		if strings.TrimSpace(cfg.Alpaca.KeyID) == "" || strings.TrimSpace(cfg.Alpaca.SecretKey) == "" {
			return ErrMissingBrokerKeys
		}
	}
	return nil
}
