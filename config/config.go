// Package config loads the validator core's configuration from YAML,
// following the teacher's gopkg.in/yaml.v3 idiom (config/nodes.go), and
// stands in for the original toml-config::derived_values! process-singleton
// CFG struct: a single immutable Config value constructed once at startup
// and threaded through every constructor (spec.md §9's "global/process-wide
// state" design note).
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/clustercore/corevalidator/types"
)

// Config holds every recognized configuration option from spec.md §6.
type Config struct {
	// Listen/bootnode wiring for the gossip host.
	ListenAddrs []string `yaml:"listen_addrs"`
	Bootnodes   []string `yaml:"bootnodes"`

	// MaxSnapshotHashes bounds the published accounts-hash ring (spec.md
	// §4.1/§4.2).
	MaxSnapshotHashes int `yaml:"max_snapshot_hashes"`

	// DataPlaneFanout is the turbine layer width F (spec.md §4.4).
	DataPlaneFanout int `yaml:"data_plane_fanout"`

	// MaxPacketBatchSize bounds how many packets a retransmit worker
	// drains before processing a batch (spec.md §4.4).
	MaxPacketBatchSize int `yaml:"max_packet_batch_size"`

	// SlotMaxEntries bounds the SlotHashes ring (spec.md §4.1).
	SlotMaxEntries int `yaml:"slot_max_entries"`

	// SlotHistoryMaxEntries bounds the SlotHistory bitset; must be a
	// multiple of 64 (spec.md §4.1 invariant).
	SlotHistoryMaxEntries uint64 `yaml:"slot_history_max_entries"`

	// StakeHistoryMaxEntries bounds the StakeHistory ring (spec.md §4.1).
	StakeHistoryMaxEntries int `yaml:"stake_history_max_entries"`

	// MaxCacheEntries bounds the status cache's root ring (spec.md §4.1).
	MaxCacheEntries int `yaml:"max_cache_entries"`

	// CachedSignatureSize is the number of signature bytes the status
	// cache indexes per entry; fixed at 20 upstream (spec.md §6) and
	// carried here only for configuration-surface completeness — the
	// statuscache package's CachedSignatureSize constant is authoritative.
	CachedSignatureSize int `yaml:"cached_signature_size"`

	// AccountsHashIntervalSlots, SnapshotIntervalSlots, and
	// FaultInjectionRateSlots are verifier cadence knobs (spec.md §4.2).
	AccountsHashIntervalSlots uint64 `yaml:"accounts_hash_interval_slots"`
	SnapshotIntervalSlots     uint64 `yaml:"snapshot_interval_slots"`
	FaultInjectionRateSlots   uint64 `yaml:"fault_injection_rate_slots"`

	// HaltOnTrustedValidatorsAccountsHashMismatch enables the verifier's
	// cross-check halt path (spec.md §4.2).
	HaltOnTrustedValidatorsAccountsHashMismatch bool `yaml:"halt_on_trusted_validators_accounts_hash_mismatch"`

	// TrustedValidators is the quorum the verifier cross-checks against,
	// hex-encoded 32-byte pubkeys. An empty list disables the halt check
	// regardless of HaltOnTrustedValidatorsAccountsHashMismatch (spec.md
	// §6: "None ⇒ trust-all, disables halt").
	TrustedValidators []string `yaml:"trusted_validators"`
}

// Default returns a Config populated with spec.md §6's defaults.
func Default() Config {
	return Config{
		MaxSnapshotHashes:         16,
		DataPlaneFanout:           200,
		MaxPacketBatchSize:        100,
		SlotMaxEntries:            512,
		SlotHistoryMaxEntries:     1 << 20, // 1048576, a multiple of 64
		StakeHistoryMaxEntries:    512,
		MaxCacheEntries:           300,
		CachedSignatureSize:       20,
		AccountsHashIntervalSlots: 100,
		SnapshotIntervalSlots:     100,
		FaultInjectionRateSlots:   0, // disabled by default
	}
}

// Load reads a YAML config file, starting from Default() and overlaying any
// fields present in the file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural invariants spec.md §4.1/§8 place on
// configuration: SlotHistoryMaxEntries must be a multiple of 64.
func (c Config) Validate() error {
	if c.SlotHistoryMaxEntries%64 != 0 {
		return fmt.Errorf("config: slot_history_max_entries (%d) must be a multiple of 64", c.SlotHistoryMaxEntries)
	}
	return nil
}

// TrustedValidatorSet decodes TrustedValidators into a pubkey set, or nil if
// the list is empty (trust-all, halt disabled).
func (c Config) TrustedValidatorSet() (map[types.Pubkey]struct{}, error) {
	if len(c.TrustedValidators) == 0 {
		return nil, nil
	}
	set := make(map[types.Pubkey]struct{}, len(c.TrustedValidators))
	for _, s := range c.TrustedValidators {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("config: invalid trusted validator pubkey %q: %w", s, err)
		}
		if len(b) != len(types.Pubkey{}) {
			return nil, fmt.Errorf("config: trusted validator pubkey %q must be %d bytes, got %d", s, len(types.Pubkey{}), len(b))
		}
		var pk types.Pubkey
		copy(pk[:], b)
		set[pk] = struct{}{}
	}
	return set, nil
}
