package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is the commented YAML written by InitConfig. It
// documents the shape of a working node: one restage link and one
// quota record, enough to see bundles restage and reload end to end.
const sampleConfigTemplate = `# BARD configuration.
# Environment variables override these values: BARD_<SECTION>_<KEY>,
# e.g. BARD_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text        # text, json
  output: stdout      # stdout, stderr, or a file path

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

shutdown_timeout: 30s

store:
  path: %s

metrics:
  enabled: false
  port: 9091

api:
  enabled: true
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s

# One entry per external storage root BARD restages overflow to.
restagecls:
  - name: primary
    storage_path: %s
    require_mount_point: false
    rate_limit_bytes_per_sec: 0   # 0 disables rate shaping
    poll_interval: 30s
    part_of_pool: true
    disk_quota: 0                 # 0 means bounded only by the volume
    expire_bundles: false
    days_retention: 0
    email:
      enabled: false

# One entry per endpoint-ID quota. quota_type is SRC or DST; scheme is
# ipn, imc, or dtn.
quotas:
  - quota_type: DST
    scheme: ipn
    node: "1"
    internal_bundles: 10000
    internal_bytes: 1Gi
    external_bundles: 100000
    external_bytes: 10Gi
    refuse_bundle: false
    auto_reload: true
    restage_link_name: primary
`

// InitConfig writes a sample configuration file at the default
// location ($XDG_CONFIG_HOME/bard/config.yaml), returning the path it
// wrote to. Refuses to overwrite an existing file unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	storePath := filepath.Join(getConfigDir(), "store")
	storagePath := filepath.Join(getConfigDir(), "restage", "primary")
	contents := fmt.Sprintf(sampleConfigTemplate, storePath, storagePath)

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
