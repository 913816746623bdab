// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
)

type TimerTask struct {
	Id       int64
	Execute  int64 // tick at which the task fires
	Interval int64 // re-arm period in ticks, 0 = one shot
	Callback func()
	seq      int64
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute != q[j].Execute {
		return q[i].Execute < q[j].Execute
	}
	return q[i].seq < q[j].seq
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// Wheel is a tick driven timer queue. It owns no goroutine: the room loop
// calls Advance once per tick and callbacks run on that goroutine, in
// deadline order, ties in insertion order.
type Wheel struct {
	queue  TimerQueue
	mutex  sync.Mutex
	now    int64
	nextId int64
	seq    int64
}

func NewWheel() *Wheel {
	w := &Wheel{queue: make(TimerQueue, 0), nextId: 1}
	heap.Init(&w.queue)
	return w
}

// AddTimer schedules callback delay ticks from now, then every interval
// ticks when interval > 0.
func (w *Wheel) AddTimer(delay, interval int64, callback func()) int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if delay < 1 {
		delay = 1
	}
	task := &TimerTask{
		Id:       w.nextId,
		Execute:  w.now + delay,
		Interval: interval,
		Callback: callback,
		seq:      w.seq,
	}
	w.nextId++
	w.seq++

	heap.Push(&w.queue, task)
	return task.Id
}

func (w *Wheel) RemoveTimer(timerId int64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for i, task := range w.queue {
		if task.Id == timerId {
			heap.Remove(&w.queue, i)
			break
		}
	}
}

// Advance moves one tick forward and runs every task that is due.
func (w *Wheel) Advance() {
	w.mutex.Lock()
	w.now++
	var due []*TimerTask
	for w.queue.Len() > 0 && w.queue[0].Execute <= w.now {
		task := heap.Pop(&w.queue).(*TimerTask)
		due = append(due, task)
		if task.Interval > 0 {
			task.Execute = w.now + task.Interval
			task.seq = w.seq
			w.seq++
			heap.Push(&w.queue, task)
		}
	}
	w.mutex.Unlock()

	// callbacks may add or remove timers
	for _, task := range due {
		task.Callback()
	}
}

// Now is the current tick.
func (w *Wheel) Now() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.now
}

func (w *Wheel) Len() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.queue.Len()
}

// Clear drops every pending task.
func (w *Wheel) Clear() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.queue = w.queue[:0]
}
