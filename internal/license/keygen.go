// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

// ErrExpired is returned for an expired license.
var ErrExpired = errors.New("license has expired")

// Settings identify the Keygen account and product.
type Settings struct {
	AccountID string
	ProductID string
	Token     string
}

// Validator checks the license key against Keygen.sh before trading starts.
// keygen-go is configured through package globals, so calls are serialized.
type Validator struct {
	settings Settings
	logger   *zap.Logger

	// validate is keygen.Validate; replaced in tests.
	validate func(ctx context.Context, fingerprints ...string) (*keygen.License, error)
	mu       sync.Mutex
}

// NewValidator creates a validator.
func NewValidator(s Settings, logger *zap.Logger) *Validator {
	return &Validator{settings: s, logger: logger.Named("license"), validate: keygen.Validate}
}

// Validate validates key for this machine, activating the machine on first use.
func (v *Validator) Validate(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("license key is empty")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	keygen.Account = v.settings.AccountID
	keygen.Product = v.settings.ProductID
	keygen.Token = v.settings.Token
	keygen.LicenseKey = key

	fingerprint, err := Fingerprint()
	if err != nil {
		return fmt.Errorf("machine fingerprint: %w", err)
	}

	v.logger.Info("Validating license", zap.String("key", mask(key)))
	lic, err := v.validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		machine, actErr := lic.Activate(ctx, fingerprint)
		if actErr != nil {
			return fmt.Errorf("activate license: %w", actErr)
		}
		v.logger.Info("License activated on this machine", zap.String("machine_id", machine.ID))
	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrExpired
	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}
	if lic == nil {
		return errors.New("license not found")
	}

	v.logger.Info("License valid", zap.String("license_id", lic.ID))
	return nil
}

// Heartbeat re-validates key every interval until ctx is done. A failure
// is returned so the caller can stop trading.
func (v *Validator) Heartbeat(ctx context.Context, key string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.Validate(ctx, key); err != nil && ctx.Err() == nil {
				return fmt.Errorf("license heartbeat: %w", err)
			}
		}
	}
}

// Fingerprint hashes hostname, the first hardware address and the OS.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			macs = append(macs, iface.HardwareAddr.String())
		}
	}
	sort.Strings(macs)
	mac := "none"
	if len(macs) > 0 {
		mac = macs[0]
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", sum), nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..."
}
