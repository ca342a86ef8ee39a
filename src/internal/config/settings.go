// FILE: muxd/src/internal/config/settings.go
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known engine setting keys
const (
	KeyReactorNum             = "reactor_num"
	KeyWorkerNum              = "worker_num"
	KeyTaskWorkerNum          = "task_worker_num"
	KeyDispatchMode           = "dispatch_mode"
	KeyDaemonize              = "daemonize"
	KeyLogFile                = "log_file"
	KeyPidFile                = "pid_file"
	KeyHeartbeatCheckInterval = "heartbeat_check_interval"
	KeyHeartbeatIdleTime      = "heartbeat_idle_time"
	KeyPackageMaxLength       = "package_max_length"
	KeySocketBufferSize       = "socket_buffer_size"
	KeyBufferOutputSize       = "buffer_output_size"
	KeyOpenTCPNoDelay         = "open_tcp_nodelay"
	KeyEnableReusePort        = "enable_reuse_port"
	KeyMaxWaitTime            = "max_wait_time"
	KeyMaxConn                = "max_conn"
	KeyMaxConnection          = "max_connection"

	// PEM file holding the certificate chain followed by its private key
	KeySSLCertFile   = "ssl_cert_file"
	KeySSLMethod     = "ssl_method"
	KeySSLCiphers    = "ssl_ciphers"
	KeySSLVerifyPeer = "ssl_verify_peer"
)

var settingKeys = map[string]struct{}{}

func init() {
	for _, k := range []string{
		KeyReactorNum, KeyWorkerNum, "max_request", KeyMaxConn, KeyMaxConnection,
		KeyTaskWorkerNum, "task_ipc_mode", "task_max_request", "task_tmpdir",
		"task_enable_coroutine", "task_use_object", KeyDispatchMode, "dispatch_func",
		"message_queue_key", KeyDaemonize, "backlog", KeyLogFile, "log_level",
		KeyHeartbeatCheckInterval, KeyHeartbeatIdleTime, "open_eof_check", "open_eof_split",
		"package_eof", "open_length_check", "package_length_type", "package_length_func",
		KeyPackageMaxLength, "open_cpu_affinity", "cpu_affinity_ignore", KeyOpenTCPNoDelay,
		"tcp_defer_accept", KeySSLCertFile, KeySSLMethod, KeySSLCiphers, "user", "group",
		"chroot", KeyPidFile, "pipe_buffer_size", KeyBufferOutputSize, KeySocketBufferSize,
		"enable_unsafe_event", "discard_timeout_request", KeyEnableReusePort,
		"enable_delay_receive", "open_http_protocol", "open_http2_protocol",
		"open_websocket_protocol", "open_mqtt_protocol", "open_websocket_close_frame",
		"reload_async", "tcp_fastopen", "request_slowlog_file", "enable_coroutine",
		"max_coroutine", KeySSLVerifyPeer, KeyMaxWaitTime,
	} {
		settingKeys[k] = struct{}{}
	}
}

// Settings is the opaque engine option bag of one listener
type Settings map[string]any

// SettingKeys returns the accepted setting keys, sorted
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSettingKey reports whether key is accepted by the engine
func IsSettingKey(key string) bool {
	_, ok := settingKeys[key]
	return ok
}

// ValidateSettings checks key membership only; values are engine business
func ValidateSettings(s Settings) error {
	var unknown []string
	for k := range s {
		if !IsSettingKey(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown setting keys: %s", strings.Join(unknown, ", "))
}

// Clone returns a shallow copy; nil stays nil
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns s overlaid with over, keys of over win. Neither map is modified.
func (s Settings) Merge(over Settings) Settings {
	if len(s) == 0 && len(over) == 0 {
		return nil
	}
	out := make(Settings, len(s)+len(over))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
