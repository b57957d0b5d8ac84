package httpdto

type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1,dive,uuid"`
}

type StartDirectRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}
