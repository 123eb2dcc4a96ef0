package models

type SmsStatus string

const (
	SmsStatusIdle          SmsStatus = "idle"
	SmsStatusSubscribing   SmsStatus = "subscribing"
	SmsStatusSubscribed    SmsStatus = "subscribed"
	SmsStatusUnsubscribing SmsStatus = "unsubscribing"
	SmsStatusError         SmsStatus = "error"
)
