package layer

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"vtdsapp/internal/domain"
)

// deployScriptTmpl is the lifecycle script staged next to each mock binary.
// "install -p PORT" (re)starts the service detached from the SSH session
// that ran it; "remove" stops it and cleans up.
var deployScriptTmpl = template.Must(template.New("deploy").Parse(`#!/bin/sh
# Lifecycle script for the {{.Service}} workload.
#
# usage: {{.ScriptName}} install [-p PORT]
#        {{.ScriptName}} remove

BIN={{.BinPath}}
PIDFILE=/run/{{.Service}}.pid
LOGFILE=/var/log/{{.Service}}.log

stop_service() {
    if [ -f "$PIDFILE" ]; then
        kill "$(cat "$PIDFILE")" 2>/dev/null || true
        rm -f "$PIDFILE"
    fi
}

case "$1" in
install)
    shift
    PORT={{.DefaultPort}}
    while getopts p: opt; do
        case "$opt" in
        p) PORT="$OPTARG" ;;
        esac
    done
    stop_service
    chmod 755 "$BIN"
    nohup "$BIN" -p "$PORT" >"$LOGFILE" 2>&1 &
    echo $! >"$PIDFILE"
    ;;
remove)
    stop_service
    rm -f "$BIN" "$LOGFILE"
    ;;
*)
    echo "usage: $0 {install [-p PORT]|remove}" >&2
    exit 1
    ;;
esac
`))

type scriptParams struct {
	Service     string
	ScriptName  string
	BinPath     string
	DefaultPort int
}

// renderScripts writes one deploy script per service-bearing class into
// the build directory. The script names match what the plan expects to
// find there.
func renderScripts(plan *domain.DeployPlan) error {
	for class, assignment := range plan.Assignments {
		scriptName := string(class) + "-deploy.sh"
		params := scriptParams{
			Service:     string(assignment.Service),
			ScriptName:  scriptName,
			BinPath:     filepath.Join(domain.RemoteStageDir, string(assignment.Service)),
			DefaultPort: assignment.ServicePort,
		}

		path := filepath.Join(plan.BuildDir, scriptName)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
		if err != nil {
			return fmt.Errorf("create deploy script %s: %w", path, err)
		}
		if err := deployScriptTmpl.Execute(f, params); err != nil {
			f.Close()
			return fmt.Errorf("render deploy script %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write deploy script %s: %w", path, err)
		}
	}
	return nil
}
