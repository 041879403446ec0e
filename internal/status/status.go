// Package status runs boot-environment diagnostics: directories, config
// document health, storage credentials, sync freshness, and whether a
// gateway is answering on its port.
package status

import (
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clawboot/internal/fsutil"
	"clawboot/internal/settings"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy        bool      `json:"healthy"`
	GatewayRunning bool      `json:"gatewayRunning"`
	LastSync       string    `json:"lastSync,omitempty"`
	CheckpointAge  string    `json:"checkpointAge,omitempty"`
	Findings       []Finding `json:"findings"`
}

type Service struct {
	Set settings.Settings

	// now and lookPath are swapped by tests.
	now      func() time.Time
	lookPath func(string) (string, error)
}

func New(set settings.Settings) *Service {
	return &Service{Set: set, now: time.Now, lookPath: exec.LookPath}
}

func (s *Service) Run() Report {
	findings := []Finding{}
	add := func(code, level, message string) {
		findings = append(findings, Finding{Code: code, Level: level, Message: message})
	}

	if _, err := os.Stat(s.Set.ConfigDir); err != nil {
		add("ST_CONFIG_DIR_MISSING", "warn", err.Error())
	}
	if blob, err := os.ReadFile(s.Set.ConfigPath); err != nil {
		add("ST_CONFIG_MISSING", "warn", err.Error())
	} else if !json.Valid(blob) {
		add("ST_CONFIG_INVALID", "error", s.Set.ConfigPath+" is not valid JSON")
	}

	if !s.Set.Store.HasCredentials() {
		add("ST_NO_CREDENTIALS", "warn", "storage credentials not configured, restore and sync disabled")
	} else if _, err := s.lookPath("rclone"); err != nil {
		add("ST_RCLONE_MISSING", "error", "storage credentials set but rclone not found in PATH")
	}

	var checkpointAge string
	if mtime, err := fsutil.MTime(s.Set.CheckpointPath); err == nil {
		age := s.now().Sub(mtime).Truncate(time.Second)
		checkpointAge = age.String()
		if s.Set.Store.HasCredentials() && age > 10*s.Set.SyncInterval {
			add("ST_SYNC_STALE", "warn", "checkpoint last advanced "+age.String()+" ago")
		}
	}

	var lastSync string
	if blob, err := os.ReadFile(s.Set.LastSyncPath); err == nil {
		lastSync = strings.TrimSpace(string(blob))
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{
		Healthy:        healthy,
		GatewayRunning: s.portOpen(),
		LastSync:       lastSync,
		CheckpointAge:  checkpointAge,
		Findings:       findings,
	}
}

func (s *Service) portOpen() bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Set.Gateway.Port))
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
