package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/history"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/interactive"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/output"
	"github.com/isp-insoft-gmbh/memate-launcher/internal/update"
)

// releaseServer publishes one MeMate release through a fake GitHub.
type releaseServer struct {
	*httptest.Server

	mu      sync.Mutex
	build   string
	runtime []byte
}

func newReleaseServer(t *testing.T, build string) *releaseServer {
	t.Helper()

	rs := &releaseServer{build: build, runtime: runtimeArchive(t)}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/isp/memate/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":%q,"assets":[]}`, rs.currentBuild())
	})
	mux.HandleFunc("/isp/memate/releases/download/", func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "memate.exe":
			fmt.Fprintf(w, "client %s", rs.currentBuild())
		case "version.properties":
			sum := sha256.Sum256(rs.runtime)
			fmt.Fprintf(w, "build_version=%s\njre_URL_Win64=%s/runtime/jre.zip\njre_SHA256_Signature_Win64=%s\njre_FolderName_Win64=jre-17\n",
				rs.currentBuild(), rs.URL, hex.EncodeToString(sum[:]))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/runtime/jre.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(rs.runtime)))
		_, _ = w.Write(rs.runtime)
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) currentBuild() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.build
}

func (rs *releaseServer) publish(build string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.build = build
}

func runtimeArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"jre-17/bin/java":    "#!/bin/sh\n",
		"jre-17/release":     "JAVA_VERSION=17\n",
		"jre-17/lib/modules": "modules",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// testEnv is an isolated installation pointed at a release server.
type testEnv struct {
	server *releaseServer
	root   string
	config string
}

func newTestEnv(t *testing.T, build string) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", home)
	t.Setenv("MEMATE_LAUNCHER_CONFIG", "")
	t.Setenv("GITHUB_TOKEN", "")

	server := newReleaseServer(t, build)
	configPath := filepath.Join(t.TempDir(), "launcher.yaml")
	content := fmt.Sprintf(`version: 1
repository:
  owner: isp
  name: memate
api_base_url: %[1]s
download_base_url: %[1]s
progress_interval: 5ms
lock_timeout: 1s
log:
  level: debug
  file: console
`, server.URL)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return &testEnv{server: server, root: filepath.Join(t.TempDir(), "Installation"), config: configPath}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd(buildInfo{version: "1.0.0-test", commit: "abc123", date: "2026-10-14"})
	cmd.SetArgs(append([]string{"--config", e.config, "--install-root", e.root}, args...))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_InstallsWithoutLaunching(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, stderr, err := env.run(t, "--no-launch", "--plain")
	if err != nil {
		t.Fatalf("run failed: %v\nstderr:\n%s", err, stderr)
	}

	if !strings.Contains(stdout, "MeMate v2.0.0 is installed") {
		t.Errorf("stdout = %q", stdout)
	}

	client, err := os.ReadFile(filepath.Join(env.root, "memate.exe"))
	if err != nil {
		t.Fatalf("client not installed: %v", err)
	}
	if string(client) != "client v2.0.0" {
		t.Errorf("client content = %q", client)
	}
	if _, err := os.Stat(filepath.Join(env.root, "jre-17", "bin", "java")); err != nil {
		t.Errorf("runtime not extracted: %v", err)
	}
	state, err := os.ReadFile(filepath.Join(env.root, update.InstalledStateFile))
	if err != nil {
		t.Fatalf("installed state missing: %v", err)
	}
	installed, err := descriptor.Parse(state)
	if err != nil {
		t.Fatalf("installed state unreadable: %v\n%s", err, state)
	}
	if installed.BuildVersion != "v2.0.0" || installed.RuntimeFolderName != "jre-17" {
		t.Errorf("installed state = %+v", installed)
	}
	for _, leftover := range []string{update.RuntimeArchiveFile, update.StagedStateFile, "memate.exe.new"} {
		if _, err := os.Stat(filepath.Join(env.root, leftover)); !os.IsNotExist(err) {
			t.Errorf("%s should have been cleaned up", leftover)
		}
	}
	if !strings.Contains(stderr, "Done!") {
		t.Errorf("plain progress should be logged, stderr:\n%s", stderr)
	}
}

func TestRootCmd_ResolutionFailure(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")
	env.server.Close()

	_, _, err := env.run(t, "--no-launch", "--plain")
	if err == nil {
		t.Fatal("expected error when the release server is down")
	}
	var phaseErr *update.PhaseError
	if !errors.As(err, &phaseErr) || phaseErr.Phase != update.PhaseResolving {
		t.Errorf("error = %v, want a resolving phase failure", err)
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")
	if _, _, err := env.run(t, "unexpected"); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestCheckCmd(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, _, err := env.run(t, "check", "-o", "json")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	var report struct {
		Tag       string          `json:"tag"`
		Direction string          `json:"direction"`
		Installed json.RawMessage `json:"installed"`
		Plan      update.Plan     `json:"plan"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if report.Tag != "v2.0.0" {
		t.Errorf("Tag = %s", report.Tag)
	}
	if report.Direction != string(update.DirectionInstall) {
		t.Errorf("Direction = %s, want install", report.Direction)
	}
	if string(report.Installed) != "null" {
		t.Errorf("Installed = %s, want null", report.Installed)
	}
	if !report.Plan.FirstRun || !report.Plan.ClientNeedsUpdate || !report.Plan.RuntimeNeedsUpdate {
		t.Errorf("Plan = %+v", report.Plan)
	}

	if _, err := os.Stat(filepath.Join(env.root, update.InstalledStateFile)); !os.IsNotExist(err) {
		t.Error("check must not install anything")
	}
}

func TestCheckCmd_CorruptStateIsTreatedAsNotInstalled(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")
	if err := os.MkdirAll(env.root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.root, update.InstalledStateFile), []byte("build_version=v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := env.run(t, "check", "-o", "json")
	if err != nil {
		t.Fatalf("check failed on a corrupt state: %v", err)
	}

	var report struct {
		Direction string      `json:"direction"`
		Plan      update.Plan `json:"plan"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if report.Direction != string(update.DirectionInstall) || !report.Plan.FirstRun {
		t.Errorf("report = %+v, want a first install", report)
	}
}

func TestCheckCmd_TextAfterUpgrade(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")
	if _, stderr, err := env.run(t, "--no-launch", "--plain"); err != nil {
		t.Fatalf("install failed: %v\n%s", err, stderr)
	}

	stdout, _, err := env.run(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(stdout, "Everything is up to date.") {
		t.Errorf("stdout = %q", stdout)
	}

	env.server.publish("v2.1.0")
	stdout, _, err = env.run(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, want := range []string{"Installed: v2.0.0", "upgrade", "Client:  update available", "Runtime: up to date", "build_version"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestStatusCmd(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(stdout, "not installed") {
		t.Errorf("stdout = %q", stdout)
	}

	if _, stderr, err := env.run(t, "--no-launch", "--plain"); err != nil {
		t.Fatalf("install failed: %v\n%s", err, stderr)
	}

	stdout, _, err = env.run(t, "status", "-o", "yaml")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"installed: true", "client_present: true", "runtime_present: true", "build_version: v2.0.0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestHistoryCmd(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, _, err := env.run(t, "history", "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(stdout, "No history entries found.") {
		t.Errorf("stdout = %q", stdout)
	}

	for _, build := range []string{"v2.0.0", "v2.1.0", "v2.2.0"} {
		env.server.publish(build)
		if _, stderr, err := env.run(t, "--no-launch", "--plain"); err != nil {
			t.Fatalf("install %s failed: %v\n%s", build, err, stderr)
		}
	}

	stdout, _, err = env.run(t, "history", "list", "-o", "json")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	var infos []history.Info
	if err := json.Unmarshal([]byte(stdout), &infos); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}
	if infos[0].To != "v2.2.0" || infos[0].From != "v2.1.0" {
		t.Errorf("newest entry = %+v", infos[0])
	}

	stdout, _, err = env.run(t, "history", "show", "latest")
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if !strings.Contains(stdout, "v2.1.0") || !strings.Contains(stdout, "v2.2.0") {
		t.Errorf("show output missing versions:\n%s", stdout)
	}

	stdout, _, err = env.run(t, "history", "prune", "--keep", "1")
	if err != nil {
		t.Fatalf("history prune failed: %v", err)
	}
	if !strings.Contains(stdout, "Pruned 1 entries, kept 1.") {
		t.Errorf("stdout = %q", stdout)
	}

	if _, _, err := env.run(t, "history", "show", "no-such-id"); err == nil {
		t.Error("expected error for unknown history id")
	}
}

func TestRunHistoryPrune_Prompted(t *testing.T) {
	env := newTestEnv(t, "v1.0.0")
	for _, build := range []string{"v1.0.0", "v1.1.0", "v1.2.0", "v1.3.0"} {
		env.server.publish(build)
		if _, stderr, err := env.run(t, "--no-launch", "--plain"); err != nil {
			t.Fatalf("install %s failed: %v\n%s", build, err, stderr)
		}
	}

	opts := &rootOptions{configPath: env.config, installRoot: env.root}

	var stdout bytes.Buffer
	declined := interactive.NewPrompterWithIO(strings.NewReader("y\ny\nn\n"), &stdout)
	if err := runHistoryPrune(&stdout, opts, output.FormatText, 1, declined); err == nil {
		t.Fatal("declining the final confirmation should cancel")
	}

	stdout.Reset()
	approveOldest := interactive.NewPrompterWithIO(strings.NewReader("n\ny\ny\n"), &stdout)
	if err := runHistoryPrune(&stdout, opts, output.FormatText, 1, approveOldest); err != nil {
		t.Fatalf("runHistoryPrune() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Pruned 1 entries, kept 2.") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, _, err := env.run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"memate-launcher version 1.0.0-test", "commit: abc123"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestCompletionCmd(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	stdout, _, err := env.run(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if !strings.Contains(stdout, "memate-launcher") {
		t.Error("completion script should name the command")
	}

	if _, _, err := env.run(t, "completion", "powershell"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	env := newTestEnv(t, "v2.0.0")

	opts := &rootOptions{
		configPath:  env.config,
		installRoot: env.root,
		release:     "v1.0.0",
		logLevel:    "warn",
		noLaunch:    true,
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.InstallRoot != env.root {
		t.Errorf("InstallRoot = %s, want %s", cfg.InstallRoot, env.root)
	}
	if cfg.Release != "v1.0.0" {
		t.Errorf("Release = %s, want v1.0.0", cfg.Release)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Launch {
		t.Error("Launch should be disabled by --no-launch")
	}

	opts.logLevel = "chatty"
	if _, err := opts.loadConfig(); err == nil {
		t.Error("expected error for invalid --log-level")
	}
}
