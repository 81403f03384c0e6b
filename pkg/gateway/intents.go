package gateway

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DefaultIntents are the capabilities the bot needs: guild metadata and voice
// state updates.
var DefaultIntents = []string{"guilds", "guild_voice_states"}

var intentNames = map[string]discordgo.Intent{
	"guilds":                        discordgo.IntentsGuilds,
	"guild_members":                 discordgo.IntentsGuildMembers,
	"guild_moderation":              discordgo.IntentGuildModeration,
	"guild_emojis":                  discordgo.IntentsGuildEmojis,
	"guild_integrations":            discordgo.IntentsGuildIntegrations,
	"guild_webhooks":                discordgo.IntentsGuildWebhooks,
	"guild_invites":                 discordgo.IntentsGuildInvites,
	"guild_voice_states":            discordgo.IntentsGuildVoiceStates,
	"guild_presences":               discordgo.IntentsGuildPresences,
	"guild_messages":                discordgo.IntentsGuildMessages,
	"guild_message_reactions":       discordgo.IntentsGuildMessageReactions,
	"guild_message_typing":          discordgo.IntentsGuildMessageTyping,
	"direct_messages":               discordgo.IntentsDirectMessages,
	"direct_message_reactions":      discordgo.IntentsDirectMessageReactions,
	"direct_message_typing":         discordgo.IntentsDirectMessageTyping,
	"message_content":               discordgo.IntentsMessageContent,
	"guild_scheduled_events":        discordgo.IntentsGuildScheduledEvents,
	"auto_moderation_configuration": discordgo.IntentAutoModerationConfiguration,
	"auto_moderation_execution":     discordgo.IntentAutoModerationExecution,
	"all_without_privileged":        discordgo.IntentsAllWithoutPrivileged,
	"all":                           discordgo.IntentsAll,
}

// ParseIntents folds intent names (case-insensitive, "-" or "_" separated)
// into one bit set. An empty list yields DefaultIntents.
func ParseIntents(names []string) (discordgo.Intent, error) {
	if len(names) == 0 {
		names = DefaultIntents
	}

	var intents discordgo.Intent
	for _, name := range names {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
		bit, ok := intentNames[key]
		if !ok {
			return 0, fmt.Errorf("unknown gateway intent %q", name)
		}
		intents |= bit
	}
	return intents, nil
}
