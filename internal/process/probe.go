package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// javaVersionRe extracts the quoted version from a banner line like
//
//	openjdk version "17.0.2" 2022-01-18
//	java version "1.8.0_301"
var javaVersionRe = regexp.MustCompile(`version "([^"]+)"`)

// JavaAvailable checks if the java binary can be resolved.
func JavaAvailable(javaPath string) bool {
	if javaPath == "" {
		javaPath = "java"
	}
	_, err := exec.LookPath(javaPath)
	return err == nil
}

// ProbeJava runs `java -version` and returns the banner's first line.
// The JVM writes the version banner to stderr, not stdout, so both
// streams are captured.
func ProbeJava(ctx context.Context, javaPath string) (string, error) {
	if javaPath == "" {
		javaPath = "java"
	}

	cmd := exec.CommandContext(ctx, javaPath, "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("java -version failed: %w", err)
	}

	line := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return "", fmt.Errorf("java -version produced no output")
	}
	return line, nil
}

// ParseJavaVersion extracts the version string from a banner line.
// Returns "" when the banner doesn't carry a quoted version.
func ParseJavaVersion(banner string) string {
	if m := javaVersionRe.FindStringSubmatch(banner); m != nil {
		return m[1]
	}
	return ""
}

// FindJar verifies the descriptor jar exists and is a readable file.
// Returns the path unchanged on success.
func FindJar(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("descriptor jar %q: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("descriptor jar %q is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("descriptor jar %q not readable: %w", path, err)
	}
	f.Close()

	return path, nil
}
