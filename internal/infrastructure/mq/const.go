package mq

const (
	TopicChatEvents  = "chat_events"
	TagTurnCompleted = "turn_completed"
)
