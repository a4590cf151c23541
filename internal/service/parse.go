package service

import (
	"bufio"
	"strconv"
	"strings"
)

type launchdJob struct {
	PID      *int
	LastExit string
}

// parseLaunchctlList reads `launchctl list` rows of PID, last exit status, and label.
func parseLaunchctlList(out string) map[string]launchdJob {
	jobs := make(map[string]launchdJob)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] == "PID" {
			continue
		}
		job := launchdJob{LastExit: fields[1]}
		if pid, err := strconv.Atoi(fields[0]); err == nil && pid > 0 {
			job.PID = intPtr(pid)
		}
		jobs[fields[len(fields)-1]] = job
	}
	return jobs
}

type supervisorRow struct {
	Status string
	User   string
	File   string
}

// parseBrewServices reads the `brew services list` table. Rows for services that were never
// started carry only the name and status.
func parseBrewServices(out string) map[string]supervisorRow {
	rows := make(map[string]supervisorRow)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] == "Name" {
			continue
		}
		row := supervisorRow{Status: strings.ToLower(fields[1])}
		if len(fields) >= 4 {
			row.User = fields[2]
			row.File = strings.Join(fields[3:], " ")
		} else if len(fields) == 3 {
			row.File = fields[2]
		}
		rows[fields[0]] = row
	}
	return rows
}

// parsePgrep reads one PID per line.
func parsePgrep(out string) []int {
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// countClientConnections counts connected sockets in `lsof -F tn` output. Listening sockets
// have no peer ("->") and are not clients.
func countClientConnections(out string) int {
	count := 0
	socketType := ""
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case 'f':
			socketType = ""
		case 't':
			socketType = line[1:]
		case 'n':
			switch socketType {
			case "IPv4", "IPv6", "unix":
				if strings.Contains(line, "->") {
					count++
				}
			}
		}
	}
	return count
}
