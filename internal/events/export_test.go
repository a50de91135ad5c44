package events

var NewLockToken = newLockToken
