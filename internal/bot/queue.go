package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// userQueue hands each user's messages to a single worker goroutine in
// arrival order. Different users are handled concurrently.
type userQueue struct {
	handle func(*tgbotapi.Message)

	mu      sync.Mutex
	pending map[int64][]*tgbotapi.Message
	wg      sync.WaitGroup
}

func newUserQueue(handle func(*tgbotapi.Message)) *userQueue {
	return &userQueue{
		handle:  handle,
		pending: make(map[int64][]*tgbotapi.Message),
	}
}

func (q *userQueue) push(message *tgbotapi.Message) {
	var key int64
	if message.From != nil {
		key = message.From.ID
	} else if message.Chat != nil {
		key = message.Chat.ID
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if queued, running := q.pending[key]; running {
		q.pending[key] = append(queued, message)
		return
	}
	q.pending[key] = []*tgbotapi.Message{message}
	q.wg.Add(1)
	go q.drain(key)
}

// drain runs until the user's queue is empty. A key present in pending means
// its worker is still running.
func (q *userQueue) drain(key int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		queued := q.pending[key]
		if len(queued) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		next := queued[0]
		q.pending[key] = queued[1:]
		q.mu.Unlock()

		q.handle(next)
	}
}

// wait blocks until every queued message has been handled.
func (q *userQueue) wait() {
	q.wg.Wait()
}
