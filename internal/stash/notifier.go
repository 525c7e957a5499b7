package stash

import "log"

// LogNotifier renders interaction signals as log lines. Real deployments
// forward these to the chat log; the core only emits them.
type LogNotifier struct {
	Log *log.Logger
}

func (n LogNotifier) Reject(userID, reason string) {
	n.printf("reject user=%s: %s", userID, reason)
}

func (n LogNotifier) CurrencyTaken(actorID, denom string, amount int) {
	n.printf("pickup actor=%s currency %d %s", actorID, amount, denom)
}

func (n LogNotifier) ItemsTaken(actorID, itemName string, count int, img string) {
	n.printf("pickup actor=%s %d x %s", actorID, count, itemName)
}

func (n LogNotifier) LockCue(tokenID string) {
	n.printf("locked token=%s", tokenID)
}

func (n LogNotifier) printf(format string, args ...any) {
	if n.Log != nil {
		n.Log.Printf(format, args...)
	}
}
