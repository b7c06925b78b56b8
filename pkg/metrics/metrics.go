// Package metrics holds the Prometheus collectors of the bot's features.
// They are registered on the default registry and served by the control server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RoleMenusCreated counts menus posted by kind ("select", "toggle").
	RoleMenusCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_role_menus_created_total",
			Help: "Role menus posted, by kind.",
		},
		[]string{"kind"},
	)

	// RoleMenuInteractions counts component clicks by control and outcome.
	RoleMenuInteractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_role_menu_interactions_total",
			Help: "Role menu component interactions, by control and outcome.",
		},
		[]string{"control", "outcome"},
	)

	// RoleChanges counts individual role grants and revocations.
	RoleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_role_changes_total",
			Help: "Roles granted or revoked through menus.",
		},
		[]string{"action"},
	)

	// RoleMenusRestored gauges the views registered at the last startup.
	RoleMenusRestored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "physbot_role_menus_restored",
			Help: "Persistent role menus restored at startup.",
		},
	)

	// FAQLookups counts /faq show by result ("hit", "miss").
	FAQLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_faq_lookups_total",
			Help: "FAQ lookups, by result.",
		},
		[]string{"result"},
	)

	// ModerationEvents counts logged message deletions and edits.
	ModerationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_moderation_events_total",
			Help: "Message events recorded in the moderation log, by type.",
		},
		[]string{"type"},
	)

	// CommandsHandled counts slash commands by name and status.
	CommandsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "physbot_commands_total",
			Help: "Slash commands handled, by command and status.",
		},
		[]string{"command", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RoleMenusCreated,
		RoleMenuInteractions,
		RoleChanges,
		RoleMenusRestored,
		FAQLookups,
		ModerationEvents,
		CommandsHandled,
	)
}
