package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"paper_trader/internal/core"
)

// LoadAllowlist reads the tradable symbols file: one ticker per line,
// upper-cased, with blank lines and '#' comments ignored. The file is read
// fresh each run so edits take effect without a restart.
func LoadAllowlist(path string) (core.Allowlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open allowlist: %w", err)
	}
	defer f.Close()

	allow := make(core.Allowlist)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		allow[strings.ToUpper(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allowlist: %w", err)
	}
	return allow, nil
}
