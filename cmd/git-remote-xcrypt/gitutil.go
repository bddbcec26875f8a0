package main

import (
	"fmt"
	"os/exec"
	"strings"
)

// discoverGitDir shells out to `git rev-parse --git-dir`, the same way a
// git-invoked subprocess would discover its repository root, so the
// supplemental commands work from any directory inside a work tree.
func discoverGitDir() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-dir").Output()
	if err != nil {
		return "", fmt.Errorf("discovering git directory: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// xcryptURL prefixes url with the xcrypt:: remote-helper scheme unless
// it's already there, mirroring user_command.cpp's get_xcrypt_url.
func xcryptURL(url string) string {
	if strings.HasPrefix(url, "xcrypt::") {
		return url
	}
	return "xcrypt::" + url
}

func runGit(args ...string) error {
	cmd := exec.Command("git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
