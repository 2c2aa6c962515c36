package discordbot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"rankbot/config"
	"rankbot/statstore"
)

// SyncRank mirrors a member's rank onto guild roles: the target rank role
// is added (created first if missing) and every other rank role is removed.
// Elite subtype roles are handled the same way. Idempotent and best-effort:
// permission failures are logged, never propagated.
func (b *Bot) SyncRank(guildID, userID string, rank int, elite *statstore.EliteType) {
	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		b.log.Warn("cannot list guild roles",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()))
		return
	}
	member, err := b.session.GuildMember(guildID, userID)
	if err != nil {
		b.log.Warn("cannot fetch member",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}

	byName := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}
	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = true
	}

	wanted := map[string]int{config.Ranks[rank].Name: config.Ranks[rank].Color}
	if rank == config.RankElite && elite != nil {
		if info, ok := config.EliteTypes[string(*elite)]; ok {
			wanted["Elite - "+info.Name] = config.Ranks[config.RankElite].Color
		}
	}

	managed := make(map[string]int)
	for level := config.RankViewer; level <= config.RankRuler; level++ {
		managed[config.Ranks[level].Name] = config.Ranks[level].Color
	}
	for _, info := range config.EliteTypes {
		managed["Elite - "+info.Name] = config.Ranks[config.RankElite].Color
	}

	for name, color := range managed {
		role := byName[name]
		_, want := wanted[name]

		if want && role == nil {
			role, err = b.ensureRole(guildID, name, color)
			if err != nil {
				continue
			}
		}
		if role == nil {
			continue
		}

		switch {
		case want && !held[role.ID]:
			if err := b.session.GuildMemberRoleAdd(guildID, userID, role.ID); err != nil {
				b.logRoleErr("add", guildID, name, err)
			}
		case !want && held[role.ID]:
			if err := b.session.GuildMemberRoleRemove(guildID, userID, role.ID); err != nil {
				b.logRoleErr("remove", guildID, name, err)
			}
		}
	}
}

func (b *Bot) ensureRole(guildID, name string, color int) (*discordgo.Role, error) {
	mentionable := true
	role, err := b.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Color:       &color,
		Mentionable: &mentionable,
	})
	if err != nil {
		b.logRoleErr("create", guildID, name, err)
		return nil, err
	}
	return role, nil
}

func (b *Bot) logRoleErr(action, guildID, role string, err error) {
	b.log.Warn("role sync failed",
		slog.String("action", action),
		slog.String("guild_id", guildID),
		slog.String("role", role),
		slog.String("error", err.Error()))
}
