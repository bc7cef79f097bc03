// Package modules wires the accelerator services with fx. Each role
// selects the modules it serves on top of the shared infrastructure.
package modules

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/boot"
)

// Role names a deployable service.
type Role string

const (
	RoleHub            Role = "hub"
	RoleSessionManager Role = "sessionmanager"
	RoleOrchestrator   Role = "orchestrator"
	RoleSearch         Role = "search"
	// RoleAll runs every service in one process.
	RoleAll Role = "all"
)

// Roles lists the accepted roles.
var Roles = []Role{RoleHub, RoleSessionManager, RoleOrchestrator, RoleSearch, RoleAll}

// ParseRole accepts a role name case-insensitively.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, r := range Roles {
		if r == role {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Options returns the fx options serving role.
func Options(role Role) []fx.Option {
	opts := []fx.Option{InfrastructureModule}
	switch role {
	case RoleHub:
		opts = append(opts, HubModule)
	case RoleSearch:
		opts = append(opts, RemoteConfigModule, SearchModule)
	case RoleOrchestrator:
		opts = append(opts, RemoteConfigModule, RemoteSearcher, OrchestratorModule)
	case RoleSessionManager:
		opts = append(opts, RemoteConfigModule, SessionModule)
	case RoleAll:
		opts = append(opts,
			HubModule,
			LocalConfigModule,
			SearchModule,
			LocalSearcher,
			OrchestratorModule,
			SessionModule,
			fx.Decorate(loopbackOrchestrator),
		)
	}
	return append(opts, ServerModule(role))
}

// loopbackOrchestrator points the session manager at the orchestrator
// served by this process unless ORCHESTRATOR_URL names another one.
func loopbackOrchestrator(rc *boot.RuntimeConfig) *boot.RuntimeConfig {
	if rc.OrchestratorURLSet {
		return rc
	}
	out := *rc
	out.OrchestratorURL = LoopbackURL(rc.ServerAddr, "/bot")
	return &out
}

// LoopbackURL returns an http URL reaching addr on this host.
func LoopbackURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://127.0.0.1" + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}
