package httpdto

// SendMessageRequest is the JSON form of a send. Multipart sends carry the
// same fields as form values plus "attachments" files.
type SendMessageRequest struct {
	Content         string `json:"content" form:"content" binding:"max=10000"`
	ParentMessageID string `json:"parent_message_id" form:"parent_message_id" binding:"omitempty,uuid"`
	ClientMessageID string `json:"client_message_id" form:"client_message_id" binding:"required,max=128"`
}

type SendDirectRequest struct {
	RecipientID string `json:"recipient_id" form:"recipient_id" binding:"required,uuid"`
	SendMessageRequest
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required,max=10000"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=64"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type ReceiptResponse struct {
	Changed int `json:"changed"`
}
