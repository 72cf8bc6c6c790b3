package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ExhaustionPolicy controls what happens when a mandate burns through its
// execution retry budget: roll the sequence forward and keep charging, or
// suspend the mandate until an operator intervenes.
const (
	ExhaustionPolicyRollover = "rollover"
	ExhaustionPolicySuspend  = "suspend"
)

// MandatePolicy is the retry/backoff policy applied by the lifecycle controller.
type MandatePolicy struct {
	MaxExecutionRetries    int           `mapstructure:"maxExecutionRetries"`
	MaxNotificationRetries int           `mapstructure:"maxNotificationRetries"`
	ExecutionBackoff       time.Duration `mapstructure:"executionBackoff"`
	NotificationBackoff    time.Duration `mapstructure:"notificationBackoff"`
	NotificationWindow     time.Duration `mapstructure:"notificationWindow"`
	ExhaustionPolicy       string        `mapstructure:"exhaustionPolicy"`
}

func DefaultMandatePolicy() MandatePolicy {
	return MandatePolicy{
		MaxExecutionRetries:    9,
		MaxNotificationRetries: 3,
		ExecutionBackoff:       12 * time.Hour,
		NotificationBackoff:    time.Hour,
		NotificationWindow:     48 * time.Hour,
		ExhaustionPolicy:       ExhaustionPolicyRollover,
	}
}

// MandatePolicyHolder exposes the current policy and hot-reloads it when the
// mounted config file changes.
type MandatePolicyHolder struct {
	current atomic.Value // holds MandatePolicy
}

func NewMandatePolicyHolder() (*MandatePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("mandate")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/recurpay/config") // Volume-mounted config
	v.AddConfigPath("/etc/recurpay")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("RECURPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultMandatePolicy()
		v.SetDefault("mandate.maxExecutionRetries", defaults.MaxExecutionRetries)
		v.SetDefault("mandate.maxNotificationRetries", defaults.MaxNotificationRetries)
		v.SetDefault("mandate.executionBackoff", defaults.ExecutionBackoff)
		v.SetDefault("mandate.notificationBackoff", defaults.NotificationBackoff)
		v.SetDefault("mandate.notificationWindow", defaults.NotificationWindow)
		v.SetDefault("mandate.exhaustionPolicy", defaults.ExhaustionPolicy)
	}

	var policy MandatePolicy
	if err := v.UnmarshalKey("mandate", &policy); err != nil {
		return nil, err
	}
	if err := validateMandatePolicy(policy); err != nil {
		return nil, err
	}

	holder := &MandatePolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MandatePolicy
		if err := v.UnmarshalKey("mandate", &updated); err != nil {
			log.Printf("[mandate-policy] reload failed: %v", err)
			return
		}
		if err := validateMandatePolicy(updated); err != nil {
			log.Printf("[mandate-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[mandate-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MandatePolicyHolder) Current() MandatePolicy {
	return h.current.Load().(MandatePolicy)
}

// NewStaticPolicyHolder skips the file watcher; tests use it.
func NewStaticPolicyHolder(policy MandatePolicy) *MandatePolicyHolder {
	holder := &MandatePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func validateMandatePolicy(policy MandatePolicy) error {
	if policy.MaxExecutionRetries <= 0 {
		return errors.New("mandate policy: maxExecutionRetries must be positive")
	}
	if policy.MaxNotificationRetries <= 0 {
		return errors.New("mandate policy: maxNotificationRetries must be positive")
	}
	if policy.ExecutionBackoff <= 0 || policy.NotificationBackoff <= 0 {
		return errors.New("mandate policy: backoff durations must be positive")
	}
	if policy.NotificationWindow <= 0 {
		return errors.New("mandate policy: notificationWindow must be positive")
	}
	switch policy.ExhaustionPolicy {
	case ExhaustionPolicyRollover, ExhaustionPolicySuspend:
	default:
		return errors.New("mandate policy: exhaustionPolicy must be rollover or suspend")
	}
	return nil
}
