package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// Digest recognizes reports of the scanners we know and summarizes them in
// a few lines. It returns the digest and the tool name, or two empty strings.
func Digest(ct ContentType, data []byte) (string, string) {
	switch ct {
	case TypeXML:
		if d, ok := nmapDigest(data); ok {
			return d, "Nmap"
		}
	case TypeJSON:
		if d, ok := gitleaksDigest(data); ok {
			return d, "Gitleaks"
		}
		if d, ok := niktoJSONDigest(data); ok {
			return d, "Nikto"
		}
	case TypeCSV:
		return csvDigest(data), ""
	case TypeText:
		if d, ok := lynisDigest(data); ok {
			return d, "Lynis"
		}
		if d, ok := niktoTextDigest(data); ok {
			return d, "Nikto"
		}
	}
	return "", ""
}

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Ports     struct {
		Ports []nmapPort `xml:"port"`
	} `xml:"ports"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPort struct {
	PortID   string `xml:"portid,attr"`
	Protocol string `xml:"protocol,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name    string `xml:"name,attr"`
		Product string `xml:"product,attr"`
		Version string `xml:"version,attr"`
	} `xml:"service"`
}

func nmapDigest(data []byte) (string, bool) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("[Nmap digest] open ports:\n")
	open := 0
	for _, host := range run.Hosts {
		var ip string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ip = addr.Addr
				break
			}
		}
		if ip == "" && len(host.Addresses) > 0 {
			ip = host.Addresses[0].Addr
		}

		for _, port := range host.Ports.Ports {
			if port.State.State != "open" {
				continue
			}
			service := strings.TrimSpace(strings.Join([]string{port.Service.Name, port.Service.Product, port.Service.Version}, " "))
			sb.WriteString(fmt.Sprintf("  %s %s/%s open %s\n", ip, port.PortID, port.Protocol, service))
			open++
		}
	}
	if open == 0 {
		sb.WriteString("  (none)\n")
	}
	return sb.String(), true
}

type gitleaksFinding struct {
	Description string `json:"Description"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	RuleID      string `json:"RuleID"`
	Match       string `json:"Match"`
}

func gitleaksDigest(data []byte) (string, bool) {
	var leaks []gitleaksFinding
	if err := json.Unmarshal(data, &leaks); err != nil || len(leaks) == 0 || leaks[0].RuleID == "" {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Gitleaks digest] %d secrets:\n", len(leaks)))
	for _, gl := range leaks {
		sb.WriteString(fmt.Sprintf("  rule %s in %s:%d (%s) match: %s\n", gl.RuleID, gl.File, gl.StartLine, gl.Description, gl.Match))
	}
	return sb.String(), true
}

type niktoRun struct {
	Host            string `json:"host"`
	IP              string `json:"ip"`
	Port            any    `json:"port"`
	Banner          string `json:"banner"`
	Vulnerabilities []struct {
		ID     string `json:"id"`
		Msg    string `json:"msg"`
		OSVDB  string `json:"osvdb"`
		Method string `json:"method"`
		URL    string `json:"url"`
	} `json:"vulnerabilities"`
}

func niktoJSONDigest(data []byte) (string, bool) {
	var run niktoRun
	if err := json.Unmarshal(data, &run); err != nil || run.Host == "" || len(run.Vulnerabilities) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Nikto digest] %s (%s) port %v, banner %q:\n", run.Host, run.IP, run.Port, run.Banner))
	for _, v := range run.Vulnerabilities {
		sb.WriteString(fmt.Sprintf("  [%s] %s %s %s\n", v.ID, v.Method, v.URL, v.Msg))
	}
	return sb.String(), true
}

// niktoTextDigest picks the "+ " result lines out of plain Nikto output,
// leaving out the run header lines.
func niktoTextDigest(data []byte) (string, bool) {
	if !bytes.Contains(data, []byte("Nikto")) {
		return "", false
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "+ ") {
			continue
		}
		msg := strings.TrimPrefix(line, "+ ")
		if strings.HasPrefix(msg, "Target") || strings.HasPrefix(msg, "Start Time") || strings.HasPrefix(msg, "End Time") {
			continue
		}
		lines = append(lines, "  "+msg)
	}
	if len(lines) == 0 {
		return "", false
	}
	return fmt.Sprintf("[Nikto digest] %d results:\n%s\n", len(lines), strings.Join(lines, "\n")), true
}

// lynisDigest reads the warning[]= and suggestion[]= entries of a Lynis
// report file. Entries look like ID|message|details|.
func lynisDigest(data []byte) (string, bool) {
	var warnings, suggestions []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "warning[]="):
			warnings = append(warnings, lynisEntry(strings.TrimPrefix(line, "warning[]=")))
		case strings.HasPrefix(line, "suggestion[]="):
			suggestions = append(suggestions, lynisEntry(strings.TrimPrefix(line, "suggestion[]=")))
		}
	}
	if len(warnings) == 0 && len(suggestions) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[Lynis digest] %d warnings, %d suggestions:\n", len(warnings), len(suggestions)))
	for _, w := range warnings {
		sb.WriteString("  warning: " + w + "\n")
	}
	for _, s := range suggestions {
		sb.WriteString("  suggestion: " + s + "\n")
	}
	return sb.String(), true
}

func lynisEntry(raw string) string {
	parts := strings.Split(raw, "|")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[0] + " " + parts[1]
	}
	return strings.TrimSuffix(raw, "|")
}
