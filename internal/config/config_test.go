package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib/test")
	cfg := Default()

	if cfg.Backend.Mode != "local" {
		t.Errorf("expected default mode 'local', got %q", cfg.Backend.Mode)
	}
	if cfg.Backend.Workers != 0 {
		t.Errorf("expected default workers 0, got %d", cfg.Backend.Workers)
	}
	if cfg.Backend.SSH.RemoteBinary != "lcpipe" {
		t.Errorf("expected remote binary 'lcpipe', got %q", cfg.Backend.SSH.RemoteBinary)
	}
	if cfg.Splitter.PDALBinary != "pdal" {
		t.Errorf("expected pdal binary 'pdal', got %q", cfg.Splitter.PDALBinary)
	}
	if cfg.State.DBPath != filepath.Join("/var/lib/test", "lcpipe", "state.db") {
		t.Errorf("unexpected db path %q", cfg.State.DBPath)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", ValidationErrors(errs))
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
backend:
  mode: ssh
  workers: 8
  ssh:
    hosts: [node1, node2]
    user: lidar
    key_file: ${TEST_LCPIPE_HOME}/.ssh/id_ed25519
    port: 2222
    options: ["ConnectTimeout=10"]
    workers_per_host: 4
splitter:
  pdal_binary: /opt/pdal/bin/pdal
remote:
  options_file: webdav.yaml
log:
  debug_file: run.log
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("TEST_LCPIPE_HOME", "/home/lidar")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	want := SSHConfig{
		Hosts:          []string{"node1", "node2"},
		User:           "lidar",
		KeyFile:        "/home/lidar/.ssh/id_ed25519",
		Port:           2222,
		Options:        []string{"ConnectTimeout=10"},
		RemoteBinary:   "lcpipe",
		WorkersPerHost: 4,
	}
	if diff := cmp.Diff(want, cfg.Backend.SSH); diff != "" {
		t.Errorf("ssh config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Backend.Mode != "ssh" || cfg.Backend.Workers != 8 {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Splitter.PDALBinary != "/opt/pdal/bin/pdal" {
		t.Errorf("expected pdal binary override, got %q", cfg.Splitter.PDALBinary)
	}
	if cfg.Remote.OptionsFile != "webdav.yaml" {
		t.Errorf("expected options file 'webdav.yaml', got %q", cfg.Remote.OptionsFile)
	}
	if cfg.Log.DebugFile != "run.log" {
		t.Errorf("expected debug file 'run.log', got %q", cfg.Log.DebugFile)
	}
	if cfg.State.DBPath == "" {
		t.Error("expected default db path")
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	xdg := t.TempDir()
	project := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("LCPIPE_BACKEND_WORKERS", "")

	userDir := filepath.Join(xdg, "lcpipe")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	userConfig := "backend:\n  mode: ssh\n  workers: 2\nsplitter:\n  pdal_binary: /usr/bin/pdal\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatal(err)
	}
	projectConfig := "backend:\n  workers: 6\n"
	if err := os.WriteFile(filepath.Join(project, ".lcpipe.yaml"), []byte(projectConfig), 0644); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(project, "data", "raw")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)
	t.Setenv("LCPIPE_BACKEND_MODE", "local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// env beats user config
	if cfg.Backend.Mode != "local" {
		t.Errorf("mode = %q, want env override 'local'", cfg.Backend.Mode)
	}
	// project beats user config
	if cfg.Backend.Workers != 6 {
		t.Errorf("workers = %d, want project value 6", cfg.Backend.Workers)
	}
	// user config beats defaults
	if cfg.Splitter.PDALBinary != "/usr/bin/pdal" {
		t.Errorf("pdal binary = %q, want user value", cfg.Splitter.PDALBinary)
	}

	if got := GetProjectConfigPath(); got != filepath.Join(project, ".lcpipe.yaml") {
		t.Errorf("GetProjectConfigPath() = %q", got)
	}
	if got := GetUserConfigPath(); got != filepath.Join(userDir, "config.yaml") {
		t.Errorf("GetUserConfigPath() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Mode = "ssh"
	cfg.Backend.Workers = -1
	cfg.Backend.SSH.Port = 70000
	cfg.Splitter.PDALBinary = " "

	errs := cfg.Validate()

	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	want := []string{
		"backend.workers",
		"backend.ssh.hosts",
		"backend.ssh.port",
		"splitter.pdal_binary",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	msg := ValidationErrors(errs).Error()
	if !strings.HasPrefix(msg, "4 validation errors:") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := Default()
	cfg.Backend.Mode = "kubernetes"

	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "backend.mode" {
		t.Fatalf("errs = %v", errs)
	}
	if errs[0].Error() != "backend.mode: must be one of local, ssh, slurm (got: kubernetes)" {
		t.Errorf("Error() = %q", errs[0].Error())
	}
}
