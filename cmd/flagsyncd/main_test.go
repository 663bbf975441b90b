package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(wd, "test_flagsyncd.exe")
	cmd := exec.Command("go", "build", "-o", bin, ".")
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to build binary: %v", err)
	}
	t.Cleanup(func() { os.Remove(bin) })
	return bin
}

func TestMainVersionFlag(t *testing.T) {
	bin := buildBinary(t)

	output, err := exec.Command(bin, "--version").Output()
	if err != nil {
		t.Fatalf("failed to run version command: %v", err)
	}
	if !strings.Contains(string(output), "flagsyncd version") {
		t.Errorf("expected version output to contain 'flagsyncd version', got: %s", output)
	}
}

func TestMainMissingConfig(t *testing.T) {
	bin := buildBinary(t)

	cmd := exec.Command(bin)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH"), "HOME=" + os.Getenv("HOME")}
	cmd.Dir = t.TempDir() // keep any flagsync.yaml in the repo out of scope

	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatal("expected error for missing config, but command succeeded")
	}
	if !strings.Contains(string(output), "configuration error") {
		t.Errorf("expected configuration error message, got: %s", output)
	}
}

func TestMainHelp(t *testing.T) {
	bin := buildBinary(t)

	output, err := exec.Command(bin, "--help").Output()
	if err != nil {
		t.Fatalf("failed to run help command: %v", err)
	}
	outputStr := string(output)
	if !strings.Contains(outputStr, "Usage") {
		t.Errorf("expected usage section, got: %s", outputStr)
	}
	if !strings.Contains(outputStr, "FLAGSYNC_CLIENT_KEY") {
		t.Errorf("expected environment variable listing, got: %s", outputStr)
	}
}
