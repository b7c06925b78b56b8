package rolemenu

import (
	"github.com/physum/physbot/pkg/discord/commands/core"
	"github.com/physum/physbot/pkg/discord/gateway"
	"github.com/physum/physbot/pkg/errutil"
	"github.com/physum/physbot/pkg/roles"
)

// ComponentHandler routes clicks on role menu components to the menu that
// owns the component token.
type ComponentHandler struct {
	registry *roles.Registry
	gw       gateway.Gateway
}

func NewComponentHandler(registry *roles.Registry, gw gateway.Gateway) *ComponentHandler {
	return &ComponentHandler{registry: registry, gw: gw}
}

func (h *ComponentHandler) Owns(customID string) bool {
	_, _, _, ok := h.registry.Lookup(customID)
	return ok
}

func (h *ComponentHandler) HandleComponent(ctx *core.Context) error {
	i := ctx.Interaction
	data := i.MessageComponentData()

	v, messageID, control, ok := h.registry.Lookup(data.CustomID)
	if !ok {
		return core.NewCommandError(core.InactiveComponentMessage, true)
	}
	if ctx.GuildID == "" || i.Member == nil {
		return core.NewCommandError("Role menus only work inside a server.", true)
	}

	ev := roles.Event{
		Control:     control,
		GuildID:     ctx.GuildID,
		UserID:      ctx.UserID,
		MemberRoles: i.Member.Roles,
		Values:      data.Values,
	}
	reply, err := v.Handle(ctx.Ctx(), h.gw, ev)
	if err != nil {
		ctx.Logger.Warn("Role menu interaction failed", "message_id", messageID, "control", control, "error", err)
		if errutil.IsDiscordForbidden(err) {
			return core.NewCommandError("I am not allowed to change one of these roles.", true)
		}
		return err
	}

	responder := core.NewResponseManager(ctx.Session)
	if reply.Deferred {
		return responder.DeferredUpdate(i)
	}
	return responder.Ephemeral(i, reply.Content)
}
