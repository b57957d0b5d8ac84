package events

// Kind is the mutation a change event reports.
type Kind string

const (
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// Entity names the record type carried by a change event.
type Entity string

const (
	EntityConversation    Entity = "conversation"
	EntityMessage         Entity = "message"
	EntityAttachment      Entity = "attachment"
	EntityReaction        Entity = "reaction"
	EntityTypingIndicator Entity = "typing_indicator"
	EntityOnlineStatus    Entity = "online_status"
)

// Redis channel prefixes
const (
	ChannelPrefixConversation = "channel:conversation:"
	ChannelPresence           = "channel:presence:global"
	ChannelPattern            = "channel:*"
)
