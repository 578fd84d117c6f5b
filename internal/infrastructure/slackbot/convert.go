// Package slackbot connects the router to Slack over socket mode or the HTTP
// Events API, and implements the outbound messenger and identity ports.
package slackbot

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// FromEventsAPI converts an Events API callback into a domain event.
func FromEventsAPI(ev slackevents.EventsAPIEvent) entities.Event {
	if ev.Type != slackevents.CallbackEvent {
		return entities.UnknownEvent{Type: ev.Type}
	}

	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		return entities.MessageEvent{
			UserID:          inner.User,
			ChannelID:       inner.Channel,
			ChannelType:     inner.ChannelType,
			Text:            inner.Text,
			TimeStamp:       inner.TimeStamp,
			ThreadTimeStamp: inner.ThreadTimeStamp,
			SubType:         inner.SubType,
			BotID:           inner.BotID,
		}
	case *slackevents.AppMentionEvent:
		return entities.MentionEvent{
			UserID:          inner.User,
			ChannelID:       inner.Channel,
			Text:            inner.Text,
			TimeStamp:       inner.TimeStamp,
			ThreadTimeStamp: inner.ThreadTimeStamp,
			BotID:           inner.BotID,
		}
	default:
		return entities.UnknownEvent{Type: ev.InnerEvent.Type}
	}
}

// FromSlashCommand converts a slash command. ack is called by the router before it
// produces a response.
func FromSlashCommand(cmd slack.SlashCommand, ack func()) entities.CommandEvent {
	return entities.CommandEvent{
		Command:     cmd.Command,
		Text:        cmd.Text,
		UserID:      cmd.UserID,
		ChannelID:   cmd.ChannelID,
		ResponseURL: cmd.ResponseURL,
		Ack:         ack,
	}
}
