package hearth

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Component operation names, encoded into custom_ids alongside the view
// ID and decoded back into Action.Op at the collector boundary.
const (
	opSettingsFeatures = "st_features"
	opSettingsCommands = "st_commands"
	opSettingsChannels = "st_channels"
	opSettingsHome     = "st_home"
	opSettingsDone     = "st_done"
	opFeatureToggle    = "st_feature_toggle"
	opCommandToggle    = "st_command_toggle"
	opChannelPick      = "st_channel_pick"

	opStarboardChannel   = "sb_channel"
	opStarboardEmoji     = "sb_emoji"
	opStarboardSuccess   = "sb_success"
	opStarboardThreshold = "sb_threshold"
	opStarboardBlacklist = "sb_blacklist"
	opStarboardHome      = "sb_home"
	opStarboardDone      = "sb_done"

	opConfessionApprove = "cf_approve"
	opConfessionDeny    = "cf_deny"
	opConfessionBan     = "cf_ban"
	opDenyReasonSkip    = "cf_reason_no"
)

const (
	embedColorNeutral  = 0x5865F2
	embedColorSuccess  = 0x57F287
	embedColorDanger   = 0xED4245
	embedColorInactive = 0x99AAB5
)

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orUnset(channelID string) string {
	if channelID == "" {
		return "*unset*"
	}
	return fmt.Sprintf("<#%s>", channelID)
}

func button(label string, style discordgo.ButtonStyle, op string, viewID string) discordgo.Button {
	return discordgo.Button{
		Label:    label,
		Style:    style,
		CustomID: encodeCustomID(op, viewID),
	}
}

func actionsRow(components ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: components}
}

// renderSettingsHome is the top-level settings menu view.
func renderSettingsHome(state GuildState, viewID string) ViewPayload {
	embed := &discordgo.MessageEmbed{
		Title: "Server Settings",
		Color: embedColorNeutral,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Channels",
				Value: fmt.Sprintf(
					"Confessions: %s\nApprovals: %s\nStarboard: %s\nQOTD: %s",
					orUnset(state.Channels.Confession),
					orUnset(state.Channels.ConfessionApproval),
					orUnset(state.Channels.Starboard),
					orUnset(state.Channels.QOTD),
				),
			},
			{
				Name: "Features",
				Value: fmt.Sprintf(
					"Wordle scanning: %s\nStarboard scanning: %s\nLink embed fixes: %s\nCustom responses: %s",
					onOff(state.FeatureToggles.WordleScanning),
					onOff(state.FeatureToggles.StarboardScanning),
					onOff(state.FeatureToggles.LinkEmbedFixes),
					onOff(state.FeatureToggles.CustomResponseScanning),
				),
			},
			{
				Name: "Command overrides",
				Value: fmt.Sprintf(
					"Enabled: %d\nDisabled: %d",
					len(state.CommandOverrides.Enabled),
					len(state.CommandOverrides.Disabled),
				),
			},
		},
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			actionsRow(
				button("Features", discordgo.PrimaryButton, opSettingsFeatures, viewID),
				button("Commands", discordgo.PrimaryButton, opSettingsCommands, viewID),
				button("Channels", discordgo.PrimaryButton, opSettingsChannels, viewID),
				button("Done", discordgo.SecondaryButton, opSettingsDone, viewID),
			),
		},
	}
}

// renderFeatureMenu lists the feature toggles as a select menu; picking
// a feature flips it.
func renderFeatureMenu(state GuildState, viewID string) ViewPayload {
	options := []discordgo.SelectMenuOption{
		{
			Label:       fmt.Sprintf("Wordle scanning (%s)", onOff(state.FeatureToggles.WordleScanning)),
			Value:       featureWordle,
			Description: "Track wordle results posted in chat",
		},
		{
			Label:       fmt.Sprintf("Starboard scanning (%s)", onOff(state.FeatureToggles.StarboardScanning)),
			Value:       featureStarboard,
			Description: "React-count scanning for the starboard",
		},
		{
			Label:       fmt.Sprintf("Link embed fixes (%s)", onOff(state.FeatureToggles.LinkEmbedFixes)),
			Value:       featureLinkFix,
			Description: "Rewrite social links with working embeds",
		},
		{
			Label:       fmt.Sprintf("Custom responses (%s)", onOff(state.FeatureToggles.CustomResponseScanning)),
			Value:       featureCustomResponse,
			Description: "Scan messages for custom trigger phrases",
		},
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Feature Toggles",
				Description: "Select a feature to toggle it.",
				Color:       embedColorNeutral,
			},
		},
		Components: []discordgo.MessageComponent{
			actionsRow(
				discordgo.SelectMenu{
					CustomID:    encodeCustomID(opFeatureToggle, viewID),
					Placeholder: "Toggle a feature",
					Options:     options,
				},
			),
			actionsRow(
				button("Back", discordgo.SecondaryButton, opSettingsHome, viewID),
			),
		},
	}
}

// renderCommandMenu lists registry commands with their effective
// enablement; picking one flips its override.
func renderCommandMenu(
	state GuildState,
	registry CommandRegistry,
	commandNames []string,
	viewID string,
) ViewPayload {
	var lines []string
	options := make([]discordgo.SelectMenuOption, 0, len(commandNames))
	for _, name := range commandNames {
		defaultOn, known := registry.DefaultEnabled(name)
		if !known {
			continue
		}
		enabled := state.CommandOverrides.IsEnabled(name, defaultOn)
		suffix := ""
		if registry.GloballyDisabled(name) {
			suffix = " (globally disabled)"
		}
		lines = append(
			lines,
			fmt.Sprintf("`/%s` — %s%s", name, onOff(enabled), suffix),
		)
		options = append(
			options,
			discordgo.SelectMenuOption{
				Label: fmt.Sprintf("/%s (%s)", name, onOff(enabled)),
				Value: name,
			},
		)
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Command Overrides",
				Description: strings.Join(lines, "\n"),
				Color:       embedColorNeutral,
			},
		},
		Components: []discordgo.MessageComponent{
			actionsRow(
				discordgo.SelectMenu{
					CustomID:    encodeCustomID(opCommandToggle, viewID),
					Placeholder: "Toggle a command",
					Options:     options,
				},
			),
			actionsRow(
				button("Back", discordgo.SecondaryButton, opSettingsHome, viewID),
			),
		},
	}
}

// renderChannelEditor prompts for a channel pick for the named slot.
func renderChannelEditor(state GuildState, viewID string) ViewPayload {
	menuType := discordgo.ChannelSelectMenu
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title: "Channel Slots",
				Description: fmt.Sprintf(
					"Confessions: %s\nApprovals: %s\nStarboard: %s\nQOTD: %s\n\n"+
						"Reply with `<slot> #channel` (ex: `starboard #general`), or pick below to set the confession channel.",
					orUnset(state.Channels.Confession),
					orUnset(state.Channels.ConfessionApproval),
					orUnset(state.Channels.Starboard),
					orUnset(state.Channels.QOTD),
				),
				Color: embedColorNeutral,
			},
		},
		Components: []discordgo.MessageComponent{
			actionsRow(
				discordgo.SelectMenu{
					MenuType:    menuType,
					CustomID:    encodeCustomID(opChannelPick, viewID),
					Placeholder: "Confession channel",
				},
			),
			actionsRow(
				button("Back", discordgo.SecondaryButton, opSettingsHome, viewID),
			),
		},
	}
}

// renderSettingsDone is the neutralized view left behind when a settings
// session ends. No components remain, so no dangling interactive prompt.
func renderSettingsDone(timedOut bool) ViewPayload {
	desc := "Settings closed."
	color := embedColorInactive
	if timedOut {
		desc = "Settings menu timed out."
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{Title: "Server Settings", Description: desc, Color: color},
		},
		Components: []discordgo.MessageComponent{},
	}
}

// renderStarboardHome is the starboard editor's home view.
func renderStarboardHome(state GuildState, viewID string) ViewPayload {
	sb := state.Starboard
	blacklist := "off"
	if sb.Blacklist.Enabled {
		blacklist = fmt.Sprintf("%d channels", len(sb.Blacklist.ChannelIDs))
	}
	embed := &discordgo.MessageEmbed{
		Title: "Starboard Settings",
		Color: embedColorNeutral,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Channel", Value: orUnset(state.Channels.Starboard), Inline: true},
			{Name: "Emoji", Value: sb.Emoji, Inline: true},
			{Name: "Success emoji", Value: sb.SuccessEmoji, Inline: true},
			{Name: "Threshold", Value: fmt.Sprintf("%d", sb.Threshold), Inline: true},
			{Name: "Blacklist", Value: blacklist, Inline: true},
			{Name: "Scanning", Value: onOff(state.FeatureToggles.StarboardScanning), Inline: true},
		},
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			actionsRow(
				button("Channel", discordgo.PrimaryButton, opStarboardChannel, viewID),
				button("Emoji", discordgo.PrimaryButton, opStarboardEmoji, viewID),
				button("Success emoji", discordgo.PrimaryButton, opStarboardSuccess, viewID),
				button("Threshold", discordgo.PrimaryButton, opStarboardThreshold, viewID),
			),
			actionsRow(
				button("Blacklist", discordgo.PrimaryButton, opStarboardBlacklist, viewID),
				button("Done", discordgo.SecondaryButton, opStarboardDone, viewID),
			),
		},
	}
}

// renderStarboardPrompt is a field-editor view asking for a free-text
// reply (emoji, threshold, blacklist channels) or a channel pick.
func renderStarboardPrompt(field StarboardField, viewID string) ViewPayload {
	var prompt string
	components := []discordgo.MessageComponent{}
	switch field {
	case StarboardFieldChannel:
		prompt = "Pick the channel starred messages are posted to."
		menuType := discordgo.ChannelSelectMenu
		components = append(
			components,
			actionsRow(
				discordgo.SelectMenu{
					MenuType:    menuType,
					CustomID:    encodeCustomID(opChannelPick, viewID),
					Placeholder: "Starboard channel",
				},
			),
		)
	case StarboardFieldEmoji:
		prompt = "Reply with the emoji that stars a message."
	case StarboardFieldSuccessEmoji:
		prompt = "Reply with the emoji shown when a message reaches the starboard."
	case StarboardFieldThreshold:
		prompt = "Reply with the reaction count required (a number, at least 1)."
	case StarboardFieldBlacklist:
		prompt = "Reply with channel mentions to toggle on the blacklist, or `off` to disable it."
	}
	components = append(
		components,
		actionsRow(
			button("Back", discordgo.SecondaryButton, opStarboardHome, viewID),
		),
	)
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Starboard Settings",
				Description: prompt,
				Color:       embedColorNeutral,
			},
		},
		Components: components,
	}
}

func renderStarboardDone(timedOut bool) ViewPayload {
	desc := "Starboard settings closed."
	if timedOut {
		desc = "Starboard editor timed out."
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{Title: "Starboard Settings", Description: desc, Color: embedColorInactive},
		},
		Components: []discordgo.MessageComponent{},
	}
}

// renderStarboardRepost is the message posted to the starboard channel
// when a message crosses the reaction threshold.
func renderStarboardRepost(state GuildState, ev ReactionEvent) ViewPayload {
	embed := &discordgo.MessageEmbed{
		Description: ev.MessageContent,
		Color:       embedColorNeutral,
		Author: &discordgo.MessageEmbedAuthor{
			Name: fmt.Sprintf("Starred in #%s", ev.ChannelID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Source",
				Value: fmt.Sprintf(
					"[Jump to message](https://discord.com/channels/%s/%s/%s)",
					ev.GuildID,
					ev.ChannelID,
					ev.MessageID,
				),
			},
		},
	}
	if ev.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: ev.ImageURL}
	}
	return ViewPayload{
		Content: fmt.Sprintf(
			"%s **%d** <#%s> <@%s>",
			state.Starboard.Emoji,
			ev.NumReactions,
			ev.ChannelID,
			ev.AuthorUserID,
		),
		Embeds: []*discordgo.MessageEmbed{embed},
	}
}

// renderCelebration announces a message's first entry into the rendered
// leaderboard.
func renderCelebration(state GuildState, ev ReactionEvent) ViewPayload {
	return ViewPayload{
		Content: fmt.Sprintf(
			"%s <@%s> just cracked the starboard top %d! %s",
			state.Starboard.SuccessEmoji,
			ev.AuthorUserID,
			renderedLeaderboardEntries,
			state.Starboard.SuccessEmoji,
		),
	}
}

// renderPendingConfession is the approval view posted to the approval
// channel for one queued confession.
func renderPendingConfession(p PendingConfession, viewID string) ViewPayload {
	embed := &discordgo.MessageEmbed{
		Title:       "Confession Pending Approval",
		Description: p.MessageText,
		Color:       embedColorNeutral,
		Timestamp:   time.UnixMilli(p.CreatedAt).UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: p.ID},
	}
	if p.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	if p.MentionedUserID != "" {
		embed.Fields = append(
			embed.Fields,
			&discordgo.MessageEmbedField{
				Name:  "Addressed to",
				Value: fmt.Sprintf("<@%s>", p.MentionedUserID),
			},
		)
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			actionsRow(
				button("Approve", discordgo.SuccessButton, opConfessionApprove, viewID),
				button("Deny", discordgo.DangerButton, opConfessionDeny, viewID),
				button("Deny + Ban", discordgo.DangerButton, opConfessionBan, viewID),
			),
		},
	}
}

// renderDenyReasonPrompt is the nested deny sub-flow view: include a
// denial reason, or skip.
func renderDenyReasonPrompt(viewID string) ViewPayload {
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Deny Confession",
				Description: "Include a reason for the author? Reply with the reason, or skip.",
				Color:       embedColorDanger,
			},
		},
		Components: []discordgo.MessageComponent{
			actionsRow(
				button("Skip reason", discordgo.SecondaryButton, opDenyReasonSkip, viewID),
			),
		},
	}
}

// renderConfessionResolved is the terminal approval view.
func renderConfessionResolved(outcome string, number int, timedOut bool) ViewPayload {
	var desc string
	color := embedColorInactive
	switch {
	case timedOut:
		desc = "Approval timed out; the confession remains queued."
	case outcome == ConfessionApproved:
		desc = fmt.Sprintf("Approved as confession #%d.", number)
		color = embedColorSuccess
	case outcome == ConfessionEscalated:
		desc = "Denied; author banned from confessions."
		color = embedColorDanger
	default:
		desc = "Denied."
		color = embedColorDanger
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{Title: "Confession", Description: desc, Color: color},
		},
		Components: []discordgo.MessageComponent{},
	}
}

// renderConfessionPost is the public post made after approval.
func renderConfessionPost(p PendingConfession, number int) ViewPayload {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Confession #%d", number),
		Description: p.MessageText,
		Color:       embedColorNeutral,
	}
	if p.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
	}
	var content string
	if p.MentionedUserID != "" {
		content = fmt.Sprintf("<@%s>", p.MentionedUserID)
	}
	return ViewPayload{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
	}
}

// renderLeaderboard formats the starboard top list.
func renderLeaderboard(state GuildState) ViewPayload {
	entries := state.Starboard.TopEntries()
	var lines []string
	for i, e := range entries {
		lines = append(
			lines,
			fmt.Sprintf(
				"%d. %s %d — <@%s> in <#%s>",
				i+1,
				state.Starboard.Emoji,
				e.NumReactions,
				e.AuthorUserID,
				e.ChannelID,
			),
		)
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "No starred messages yet."
	}
	return ViewPayload{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Starboard Leaderboard",
				Description: desc,
				Color:       embedColorNeutral,
			},
		},
	}
}
