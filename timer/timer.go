// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	task := x.(*TimerTask)
	task.index = len(*q)
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[:n-1]
	return task
}

// TimerManager runs one-shot and periodic callbacks off a single heap. Each
// callback runs on its own goroutine.
type TimerManager struct {
	queue  TimerQueue
	mutex  sync.Mutex
	nextId int64
	tick   time.Duration
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewTimerManager(tick time.Duration) *TimerManager {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		nextId: 1,
		tick:   tick,
		stop:   make(chan struct{}),
	}
	heap.Init(&manager.queue)
	manager.wg.Add(1)
	go manager.process()
	return manager
}

// AddTimer schedules callback after delay, then every interval when interval
// is positive.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  time.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

func (m *TimerManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop halts the manager. Callbacks already started are not waited for.
func (m *TimerManager) Stop() {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *TimerManager) process() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for _, task := range m.due(now) {
				go task()
			}
		}
	}
}

// due pops every task whose time has come and reschedules periodic ones.
func (m *TimerManager) due(now time.Time) []func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var ready []func()
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		ready = append(ready, task.Callback)

		if task.Interval > 0 {
			task.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, task)
		}
	}
	return ready
}
