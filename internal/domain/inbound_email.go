package domain

// InboundEmail is one email delivery handed to the intake pipeline.
type InboundEmail struct {
	Subject        string
	Body           string
	From           string
	MessageID      *string
	ConversationID *string
	ReceivedAt     *string
}
