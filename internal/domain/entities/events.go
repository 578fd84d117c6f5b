package entities

// EventKind is the closed set of inbound platform event kinds.
type EventKind int

const (
	EventOther EventKind = iota
	EventDirectMessage
	EventChannelMessage
	EventAppMention
	EventSlashCommand
	EventConnection
)

func (k EventKind) String() string {
	switch k {
	case EventDirectMessage:
		return "direct_message"
	case EventChannelMessage:
		return "channel_message"
	case EventAppMention:
		return "app_mention"
	case EventSlashCommand:
		return "slash_command"
	case EventConnection:
		return "connection_lifecycle"
	default:
		return "other"
	}
}

// Event is an inbound platform event. The set of implementations is closed.
type Event interface {
	Kind() EventKind
	event()
}

// MessageEvent is a plain message in a DM, channel or group.
type MessageEvent struct {
	UserID          string
	ChannelID       string
	ChannelType     string // "im", "channel", "group", "mpim"
	Text            string
	TimeStamp       string
	ThreadTimeStamp string
	SubType         string
	BotID           string
}

func (e MessageEvent) Kind() EventKind {
	if e.ChannelType == "im" {
		return EventDirectMessage
	}
	return EventChannelMessage
}

// FromBot reports whether the message was posted by a bot.
func (e MessageEvent) FromBot() bool {
	return e.SubType == "bot_message" || e.BotID != ""
}

// MentionEvent is an explicit mention of the bot.
type MentionEvent struct {
	UserID          string
	ChannelID       string
	Text            string
	TimeStamp       string
	ThreadTimeStamp string
	BotID           string
}

func (MentionEvent) Kind() EventKind { return EventAppMention }

// CommandEvent is a slash command invocation. Ack must be called before the
// response is produced; it is safe to call more than once.
type CommandEvent struct {
	Command     string
	Text        string
	UserID      string
	ChannelID   string
	ResponseURL string
	Ack         func()
}

func (CommandEvent) Kind() EventKind { return EventSlashCommand }

// ConnectionEvent reports a transport lifecycle change.
type ConnectionEvent struct {
	State  string
	Detail string
}

func (ConnectionEvent) Kind() EventKind { return EventConnection }

// UnknownEvent is any event the bot does not act on.
type UnknownEvent struct {
	Type string
}

func (UnknownEvent) Kind() EventKind { return EventOther }

func (MessageEvent) event()    {}
func (MentionEvent) event()    {}
func (CommandEvent) event()    {}
func (ConnectionEvent) event() {}
func (UnknownEvent) event()    {}
