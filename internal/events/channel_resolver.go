package events

import "github.com/google/uuid"

// ChannelResolver determines which Redis channels an event is published to
type ChannelResolver interface {
	ResolveChannels(event ChangeEvent) []string
}

// ConversationChannelResolver routes conversation-bound events to the
// conversation channel and everything else to the presence channel.
type ConversationChannelResolver struct{}

func NewConversationChannelResolver() *ConversationChannelResolver {
	return &ConversationChannelResolver{}
}

func (r *ConversationChannelResolver) ResolveChannels(event ChangeEvent) []string {
	if event.ConversationID == uuid.Nil {
		return []string{ChannelPresence}
	}
	return []string{ChannelPrefixConversation + event.ConversationID.String()}
}
