package verify

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/conn-castle/dextctl/internal/messages"
)

// RegistryEntry is one row of `systemextensionsctl list`.
type RegistryEntry struct {
	Category string
	Enabled  bool
	Active   bool
	TeamID   string
	BundleID string
	Version  string
	Build    string
	Name     string
	State    string
}

// Live reports whether the entry is not on its way out of the registry.
func (e RegistryEntry) Live() bool {
	state := strings.ToLower(e.State)
	return !strings.Contains(state, "terminated") && !strings.Contains(state, "uninstall")
}

// Matches reports whether the entry belongs to identifier. Driver extensions embedded in a host
// app use the host identifier as their prefix.
func (e RegistryEntry) Matches(identifier string) bool {
	return e.BundleID == identifier || strings.HasPrefix(e.BundleID, identifier+".")
}

var (
	countPattern    = regexp.MustCompile(`^\d+ extension\(s\)$`)
	bundleIDPattern = regexp.MustCompile(`^(\S+)\s+\(([^/)]*)(?:/([^)]*))?\)$`)
)

// parseRegistry parses `systemextensionsctl list` output.
func parseRegistry(out string) ([]RegistryEntry, error) {
	if strings.TrimSpace(out) == "" {
		return nil, fmt.Errorf(messages.VerifyRegistryEmpty)
	}
	var entries []RegistryEntry
	category := ""
	scanner := bufio.NewScanner(strings.NewReader(out))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case countPattern.MatchString(line):
			continue
		case strings.HasPrefix(line, "---"):
			category = strings.TrimSpace(strings.TrimPrefix(line, "---"))
			continue
		case strings.HasPrefix(line, "enabled"):
			continue
		}
		entry, ok := parseRow(raw)
		if !ok {
			return nil, fmt.Errorf(messages.VerifyRegistryParseFmt, lineNo, raw)
		}
		entry.Category = category
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseRow reads `enabled\tactive\tteamID\tbundleID (version/build)\tname\t[state]`.
func parseRow(raw string) (RegistryEntry, bool) {
	fields := strings.Split(raw, "\t")
	if len(fields) < 5 {
		return RegistryEntry{}, false
	}
	m := bundleIDPattern.FindStringSubmatch(strings.TrimSpace(fields[3]))
	if m == nil {
		return RegistryEntry{}, false
	}
	entry := RegistryEntry{
		Enabled:  strings.TrimSpace(fields[0]) == "*",
		Active:   strings.TrimSpace(fields[1]) == "*",
		TeamID:   strings.TrimSpace(fields[2]),
		BundleID: m[1],
		Version:  m[2],
		Build:    m[3],
		Name:     strings.TrimSpace(fields[4]),
	}
	if len(fields) > 5 {
		state := strings.TrimSpace(strings.Join(fields[5:], " "))
		entry.State = strings.TrimSuffix(strings.TrimPrefix(state, "["), "]")
	}
	return entry, true
}
