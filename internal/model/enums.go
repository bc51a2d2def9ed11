package model

type MessageAuthor string

const (
	AuthorUser      MessageAuthor = "user"
	AuthorAssistant MessageAuthor = "assistant"
)

type ActionState string

const (
	ActionStateReviewing       ActionState = "reviewing"
	ActionStateAwaitingPayment ActionState = "awaiting_payment"
	ActionStateCharging        ActionState = "charging"
	ActionStateConfirming      ActionState = "confirming"
)

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "in_app"
)

type RecorderState string

const (
	RecorderOff       RecorderState = "off"
	RecorderAcquiring RecorderState = "acquiring"
	RecorderArmed     RecorderState = "armed"
	RecorderRecording RecorderState = "recording"
)
