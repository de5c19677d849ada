// Package loggen produces synthetic system logs with interleaved attack
// scenarios, for exercising a running logwatch service end to end.
package loggen

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Target files written by the generator. A directory sink creates one file per name.
const (
	AuthLog    = "auth.log"
	ApacheLog  = "apache.log"
	WindowsLog = "windows.log"
)

// Scenario severities, matching the alert severity the traffic is meant to trip.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
)

const (
	syslogLayout  = "Jan 02 15:04:05"
	apacheLayout  = "02/Jan/2006:15:04:05 -0700"
	windowsLayout = "2006-01-02 15:04:05"
)

// Event is one generated log line and the file it belongs to.
type Event struct {
	File string
	Line string
	// Pause is how long to wait after writing this line.
	Pause time.Duration
}

// Scenario is a named burst of events.
type Scenario struct {
	Name     string
	Severity string
	build    func(g *Generator) []Event
}

var (
	normalIPs   = rangeIPs("192.168.1.", 10, 50)
	internalIPs = rangeIPs("10.0.0.", 100, 120)
	attackerIPs = []string{"203.0.113.66", "198.51.100.42", "192.0.2.123", "185.220.101.50"}
	normalUsers = []string{"john", "alice", "bob", "sarah", "mike", "emma"}
	adminUsers  = []string{"admin", "root", "administrator", "sysadmin"}
)

func rangeIPs(prefix string, lo, hi int) []string {
	out := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// Generator builds log lines. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now func() time.Time

	bruteForceRuns int
}

// NewGenerator returns a generator seeded with seed. A nil clock uses time.Now.
func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

func (g *Generator) pick(items []string) string {
	return items[g.rng.IntN(len(items))]
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) pid() int { return g.between(10000, 99999) }

// Normal returns one line of routine traffic for a random file.
func (g *Generator) Normal() Event {
	now := g.now()
	switch g.rng.IntN(3) {
	case 0:
		ts := now.Format(syslogLayout)
		user := g.pick(normalUsers)
		lines := []string{
			fmt.Sprintf("%s server1 sshd[%d]: Accepted password for %s from %s port 22 ssh2", ts, g.pid(), user, g.pick(normalIPs)),
			fmt.Sprintf("%s server1 sshd[%d]: session opened for user %s", ts, g.pid(), user),
			fmt.Sprintf("%s server2 login: %s on pts/0", ts, user),
		}
		return Event{File: AuthLog, Line: g.pick(lines)}
	case 1:
		pages := []string{"/index.html", "/about.php", "/contact.php", "/api/users", "/dashboard", "/products"}
		statuses := []string{"200", "200", "200", "304"}
		return Event{File: ApacheLog, Line: fmt.Sprintf(`%s - - [%s] "%s %s HTTP/1.1" %s %d`,
			g.pick(normalIPs), now.Format(apacheLayout), g.pick([]string{"GET", "POST"}), g.pick(pages),
			g.pick(statuses), g.between(500, 5000))}
	default:
		ts := now.Format(windowsLayout)
		lines := []string{
			fmt.Sprintf("%s INFO User login successful for user: %s", ts, g.pick(normalUsers)),
			fmt.Sprintf("%s INFO Application started: Microsoft Office", ts),
			fmt.Sprintf("%s INFO System checkpoint created", ts),
		}
		return Event{File: WindowsLog, Line: g.pick(lines)}
	}
}

// Events expands s into concrete lines.
func (g *Generator) Events(s Scenario) []Event {
	return s.build(g)
}

// Catalog returns every scenario grouped by the order they are showcased in.
func Catalog() []Scenario {
	return []Scenario{
		{Name: "port_scan", Severity: SeverityMedium, build: portScan},
		{Name: "after_hours", Severity: SeverityMedium, build: afterHours},
		{Name: "failed_sudo", Severity: SeverityMedium, build: failedSudo},
		{Name: "suspicious_network", Severity: SeverityMedium, build: suspiciousNetwork},
		{Name: "brute_force", Severity: SeverityHigh, build: bruteForce},
		{Name: "sql_injection", Severity: SeverityHigh, build: sqlInjection},
		{Name: "suspicious_commands", Severity: SeverityHigh, build: suspiciousCommands},
		{Name: "log_tampering", Severity: SeverityHigh, build: logTampering},
		{Name: "privilege_escalation", Severity: SeverityCritical, build: privilegeEscalation},
		{Name: "system_compromise", Severity: SeverityCritical, build: systemCompromise},
		{Name: "data_exfiltration", Severity: SeverityCritical, build: dataExfiltration},
		{Name: "ransomware", Severity: SeverityCritical, build: ransomware},
	}
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range Catalog() {
		if s.Name == strings.TrimSpace(name) {
			return s, true
		}
	}
	return Scenario{}, false
}

func bySeverity(severity string) []Scenario {
	var out []Scenario
	for _, s := range Catalog() {
		if s.Severity == severity {
			out = append(out, s)
		}
	}
	return out
}

func portScan(g *Generator) []Event {
	ts := g.now().Format(windowsLayout)
	ip := g.pick(attackerIPs)
	ports := []int{22, 23, 80, 443, 3306, 8080, 3389, 5432, 27017, 6379}
	g.rng.Shuffle(len(ports), func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })

	n := g.between(5, 8)
	events := make([]Event, 0, n)
	for _, port := range ports[:n] {
		events = append(events, Event{
			File:  WindowsLog,
			Line:  fmt.Sprintf("%s WARNING Connection attempt from %s on port %d - SYN to multiple ports, port scan suspected", ts, ip, port),
			Pause: 200 * time.Millisecond,
		})
	}
	return events
}

func afterHours(g *Generator) []Event {
	now := g.now()
	at := time.Date(now.Year(), now.Month(), now.Day(), g.between(2, 5), g.between(0, 59), g.between(0, 59), 0, now.Location())
	return []Event{{
		File: AuthLog,
		Line: fmt.Sprintf("%s server1 sshd[%d]: Accepted password for %s from %s port 22 ssh2",
			at.Format(syslogLayout), g.pid(), g.pick(adminUsers), g.pick(attackerIPs)),
	}}
}

func failedSudo(g *Generator) []Event {
	ts := g.now().Format(syslogLayout)
	user := g.pick(normalUsers)
	n := g.between(3, 5)
	events := make([]Event, 0, n)
	for range n {
		events = append(events, Event{
			File:  AuthLog,
			Line:  fmt.Sprintf("%s server1 sudo: %s : user NOT in sudoers ; TTY=pts/0 ; PWD=/home/%s ; USER=root ; COMMAND=/bin/bash", ts, user, user),
			Pause: 300 * time.Millisecond,
		})
	}
	return events
}

func suspiciousNetwork(g *Generator) []Event {
	ts := g.now().Format(windowsLayout)
	ip := g.pick(attackerIPs)
	events := []Event{
		{File: WindowsLog, Line: fmt.Sprintf("%s WARNING Unusual outbound connection to %s:4444", ts, ip)},
		{File: WindowsLog, Line: fmt.Sprintf("%s WARNING DNS query to suspicious domain: malware-c2.ru", ts)},
	}
	for range 10 {
		events = append(events, Event{
			File:  WindowsLog,
			Line:  fmt.Sprintf("%s WARNING connection timeout from %s to %s:%d", ts, g.pick(internalIPs), ip, g.between(1024, 65535)),
			Pause: 100 * time.Millisecond,
		})
	}
	return events
}

func bruteForce(g *Generator) []Event {
	ts := g.now().Format(syslogLayout)
	user := g.pick(adminUsers)
	ip := g.pick(attackerIPs)
	n := g.between(6, 12)
	events := make([]Event, 0, n+1)
	for range n {
		events = append(events, Event{
			File:  AuthLog,
			Line:  fmt.Sprintf("%s server1 sshd[%d]: Failed password for %s from %s port 22 ssh2", ts, g.pid(), user, ip),
			Pause: 200 * time.Millisecond,
		})
	}
	g.bruteForceRuns++
	if g.bruteForceRuns%3 == 0 {
		events = append(events, Event{
			File: AuthLog,
			Line: fmt.Sprintf("%s server1 sshd[%d]: Accepted password for %s from %s port 22 ssh2", ts, g.pid(), user, ip),
		})
	}
	return events
}

func sqlInjection(g *Generator) []Event {
	ts := g.now().Format(apacheLayout)
	ip := g.pick(attackerIPs)
	payloads := []string{"' OR '1'='1", "admin'--", "1; DROP TABLE users--", "' UNION SELECT * FROM passwords--", "1' AND 1=1--"}
	events := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		events = append(events, Event{
			File:  ApacheLog,
			Line:  fmt.Sprintf(`%s - - [%s] "GET /login.php?user=%s HTTP/1.1" 403 1234`, ip, ts, p),
			Pause: 300 * time.Millisecond,
		})
	}
	return events
}

func suspiciousCommands(g *Generator) []Event {
	ts := g.now().Format(syslogLayout)
	commands := []string{"sudo rm -rf /var/log/*", "sudo cat /etc/shadow", "sudo chmod 777 /etc/passwd", "sudo useradd -m backdoor"}
	events := make([]Event, 0, len(commands))
	for _, c := range commands {
		events = append(events, Event{File: AuthLog, Line: fmt.Sprintf("%s server1 bash: %s", ts, c), Pause: 400 * time.Millisecond})
	}
	return events
}

func logTampering(g *Generator) []Event {
	ts := g.now().Format(windowsLayout)
	lines := []string{
		"WARNING File deletion detected: /var/log/auth.log",
		"WARNING File deletion detected: /var/log/apache2/access.log",
		"ERROR Log file modified: /var/log/syslog",
		"ERROR Event log cleared by administrator, 2 records deleted",
	}
	events := make([]Event, 0, len(lines))
	for _, l := range lines {
		events = append(events, Event{File: WindowsLog, Line: ts + " " + l, Pause: 400 * time.Millisecond})
	}
	return events
}

func privilegeEscalation(g *Generator) []Event {
	ts := g.now().Format(syslogLayout)
	user := g.pick([]string{"webuser", "guest", "backup"})
	return []Event{
		{File: AuthLog, Line: fmt.Sprintf("%s server1 sudo: %s : TTY=pts/0 ; PWD=/tmp ; USER=root ; COMMAND=/bin/bash", ts, user), Pause: 400 * time.Millisecond},
		{File: AuthLog, Line: fmt.Sprintf("%s server1 sudo: %s : session opened for user root", ts, user), Pause: 400 * time.Millisecond},
		{File: AuthLog, Line: fmt.Sprintf("%s server1 kernel: elevated privileges granted to %s", ts, user)},
	}
}

func systemCompromise(g *Generator) []Event {
	ts := g.now().Format(windowsLayout)
	lines := []string{
		"CRITICAL Backdoor detected: /tmp/.hidden/shell.sh",
		"CRITICAL Unauthorized root access detected",
		"CRITICAL System integrity check failed",
		"CRITICAL Malicious process detected: mining.exe flagged as trojan",
	}
	events := make([]Event, 0, len(lines))
	for _, l := range lines {
		events = append(events, Event{File: WindowsLog, Line: ts + " " + l, Pause: 400 * time.Millisecond})
	}
	return events
}

func dataExfiltration(g *Generator) []Event {
	ts := g.now().Format(apacheLayout)
	ip := g.pick(attackerIPs)
	files := []struct {
		name string
		size int
	}{
		{"database_backup.sql", 524288000},
		{"customers.csv", 157286400},
		{"financial_records.zip", 314572800},
	}
	events := make([]Event, 0, len(files)+1)
	for _, f := range files {
		events = append(events, Event{
			File:  ApacheLog,
			Line:  fmt.Sprintf(`%s - - [%s] "POST /api/download?file=%s HTTP/1.1" 200 %d`, ip, ts, f.name, f.size),
			Pause: 500 * time.Millisecond,
		})
	}
	events = append(events, Event{
		File: WindowsLog,
		Line: fmt.Sprintf("%s CRITICAL large file transfer to %s: upload of 1.2 GB", g.now().Format(windowsLayout), ip),
	})
	return events
}

func ransomware(g *Generator) []Event {
	ts := g.now().Format(windowsLayout)
	files := []string{"documents.docx", "financial.xlsx", "database.sql", "backup.zip", "customer_data.csv"}
	rounds := g.between(3, 6)
	events := make([]Event, 0, rounds*3)
	for range rounds {
		events = append(events,
			Event{File: WindowsLog, Line: fmt.Sprintf(`%s CRITICAL File encrypted: C:\Users\Documents\%s.locked`, ts, g.pick(files)), Pause: 300 * time.Millisecond},
			Event{File: WindowsLog, Line: ts + " CRITICAL Ransomware signature detected: CRYPTOLOCKER variant", Pause: 300 * time.Millisecond},
			Event{File: WindowsLog, Line: ts + " CRITICAL Multiple files being encrypted simultaneously", Pause: 300 * time.Millisecond},
		)
	}
	return events
}
