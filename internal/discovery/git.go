package discovery

import (
	"os/exec"
	"strings"
)

// GitChangedFiles returns files below root that are modified, staged or
// untracked, as slash paths relative to root. inRepo is false when git is not
// installed or root is not inside a work tree; callers then treat every file
// as changed.
func GitChangedFiles(root string) (files []string, inRepo bool, err error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, false, nil
	}
	if _, err := runGit(root, "rev-parse", "--is-inside-work-tree"); err != nil {
		return nil, false, nil
	}

	seen := make(map[string]bool)
	collect := func(out string) {
		for _, f := range splitLines(out) {
			if f != "" && !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	// Repos without commits have no HEAD; fall back to the index.
	out, err := runGit(root, "diff", "--name-only", "--relative", "HEAD")
	if err != nil {
		out, err = runGit(root, "diff", "--name-only", "--relative", "--cached")
		if err != nil {
			return nil, true, nil
		}
	}
	collect(out)

	if out, err := runGit(root, "ls-files", "--others", "--exclude-standard"); err == nil {
		collect(out)
	}
	return files, true, nil
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
