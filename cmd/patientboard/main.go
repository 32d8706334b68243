package main

import (
	"os"
	"strconv"
	"strings"

	"patientboard/internal/cli"
)

func isPatientID(s string) bool {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && id > 0
}

// rewriteDirectPatientArgs turns `patientboard <id>` into `patientboard detail <id>`. Cobra treats
// the first positional token as a subcommand, so this happens before parsing.
func rewriteDirectPatientArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}
	valueFlags := map[string]bool{
		"--dir":       true,
		"--config":    true,
		"--server":    true,
		"--db-driver": true,
		"--dsn":       true,
		"--schema":    true,
		"--log-file":  true,
		"--log-level": true,
	}
	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "detail")
		return append(out, argv[i:]...)
	}
	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isPatientID(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isPatientID(a) {
			return rewrite(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectPatientArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
