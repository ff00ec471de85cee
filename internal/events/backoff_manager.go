package events

import (
	"time"

	"github.com/nordbank/banking-platform-backend/internal/utils"
)

const DefaultMaxBackoffExponent = 8

type ConsumerBackoffManager struct {
	backoffCounter     int
	backoff            time.Duration
	backoffChan        chan<- struct{}
	maxBackoffExponent int
	message            *Message
}

func NewBackoffManager(backoffChan chan<- struct{}, maxBackoffExponent int) *ConsumerBackoffManager {
	return &ConsumerBackoffManager{
		backoffChan:        backoffChan,
		maxBackoffExponent: maxBackoffExponent,
	}
}

func (bm *ConsumerBackoffManager) TriggerBackoff() {
	bm.backoffCounter++
	if bm.backoffCounter > bm.maxBackoffExponent {
		bm.backoffCounter = bm.maxBackoffExponent
	}
	// No need to handle this error since it only returns error when retry > 32, < 0
	bm.backoff, _ = utils.ExponentialBackoffInSeconds(bm.backoffCounter)
	bm.backoffChan <- struct{}{}
}

// TriggerBackoffWithMessage holds on to the message so it is retried instead
// of a new one being read.
func (bm *ConsumerBackoffManager) TriggerBackoffWithMessage(msg *Message) {
	bm.message = msg
	bm.TriggerBackoff()
}

func (bm *ConsumerBackoffManager) GetBackoffDuration() time.Duration {
	return bm.backoff
}

func (bm *ConsumerBackoffManager) GetMessage() *Message {
	return bm.message
}

func (bm *ConsumerBackoffManager) IsMaxBackoffReached() bool {
	return bm.backoffCounter >= bm.maxBackoffExponent
}

func (bm *ConsumerBackoffManager) ResetBackoff() {
	bm.backoffCounter = 0
	bm.backoff = 0
	bm.message = nil
}
